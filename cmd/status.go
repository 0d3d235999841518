package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cellroute/pkg/history"
	"cellroute/pkg/notify"
	"cellroute/pkg/quote"
	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

var (
	watchStatus   bool
	watchInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a tracked swap",
	Long: `Check the swap started by a transaction. The swap must have been registered
with 'cellroute track'. Pending hops are looked up at the current chain heads
before the status is printed.

Examples:
  cellroute status 0xabc...
  cellroute status 0xabc... --watch
  cellroute status 0xabc... --watch --interval 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Keep checking until the swap finishes")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "Polling interval when watching")
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := parseTxHash(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if watchStatus && jsonOutput {
		return errors.New("watch mode not supported with JSON output")
	}

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	tracker := svc.tracker(watchStatus)

	s := newSpinner("Checking swap status...", !jsonOutput && !watchStatus)
	swap, err := tracker.Sync(cmd.Context(), id)
	s.Stop()
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("swap %s is not tracked, register it with 'cellroute track'", id.Hex())
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(history.NewRecord(swap), "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	displaySwap(swap, svc.registry)
	if !watchStatus || swap.Status.Terminal() {
		return nil
	}

	fmt.Printf("Watching swap %s\n", color.CyanString(id.Hex()))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
			swap, err = tracker.Sync(cmd.Context(), id)
			if err != nil {
				color.Red("Error: %v", err)
				continue
			}
			if swap.Status.Terminal() {
				displaySwap(swap, svc.registry)
				return nil
			}
		}
	}
}

func parseTxHash(s string) (common.Hash, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", s)
	}
	return common.HexToHash(s), nil
}

func displaySwap(swap *types.Swap, r registry.Registry) {
	banner("SWAP STATUS", 80)

	fmt.Printf("\n  Transaction:     %s\n", color.CyanString(swap.ID.Hex()))
	fmt.Printf("  Status:          %s\n", notify.Colored(swap.Status))
	fmt.Printf("  Type:            %s\n", swap.Type)
	fmt.Printf("  Recipient:       %s\n", swap.Recipient.Hex())
	fmt.Printf("  From:            %s\n", formatData(swap.SrcData, r))
	if swap.DstData.Complete() {
		fmt.Printf("  Received:        %s\n", formatData(swap.DstData, r))
		fmt.Printf("  Delivery Tx:     %s\n", color.HiBlackString(swap.DstTxHash.Hex()))
		fmt.Printf("  Duration:        %s\n", swap.Duration)
	} else {
		fmt.Printf("  To:              %s on chain %d\n", tokenLabel(swap.DstTokenID, swap.DstChainID, r), swap.DstChainID)
	}
	if swap.Error != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(swap.Error))
	}
	fmt.Printf("  Last Updated:    %s\n", swap.UpdatedAt.Format("2006-01-02 15:04:05"))

	for _, hop := range swap.Hops {
		fmt.Printf("\n  %s  %s\n", color.CyanString("Hop %d", hop.Index+1), notify.Colored(hop.Status))
		if hop.TxHash != (common.Hash{}) {
			fmt.Printf("    Tx:            %s\n", color.HiBlackString(hop.TxHash.Hex()))
		}
		fmt.Printf("    In:            %s\n", formatData(hop.SrcData, r))
		if hop.DstData != nil {
			fmt.Printf("    Out:           %s\n", formatData(hop.DstData, r))
		}
		if hop.Error != "" {
			fmt.Printf("    Error:         %s\n", color.RedString(hop.Error))
		}
	}

	if len(swap.Events) > 0 {
		fmt.Println()
		for _, ev := range swap.Events {
			fmt.Printf("  [%d] %-6s %s -> %s  %s\n", ev.HopIndex+1, ev.Type,
				formatData(ev.SrcData, r), formatData(ev.DstData, r), notify.Colored(ev.Status))
		}
	}

	rule(80)
}

func formatData(d *types.SwapData, r registry.Registry) string {
	if d == nil {
		return "-"
	}
	if d.TokenID == "" {
		return fmt.Sprintf("? on chain %d", d.ChainID)
	}
	label := tokenLabel(d.TokenID, d.ChainID, r)
	if t, ok := r.GetToken(d.TokenID, d.ChainID); ok && d.Amount != nil {
		return fmt.Sprintf("%s %s", quote.FormatAmount(d.Amount, t.Decimals), color.YellowString(label))
	}
	return fmt.Sprintf("%s %s", quote.FormatAmount(d.Amount, 0), label)
}

func tokenLabel(id string, chainID uint64, r registry.Registry) string {
	t, ok := r.GetToken(id, chainID)
	if !ok {
		return id
	}
	if c, ok := r.GetChain(chainID); ok {
		return t.Symbol + "@" + c.Name
	}
	return t.Symbol
}
