package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cellroute/pkg/history"
	"cellroute/pkg/notify"
	"cellroute/pkg/types"
)

var (
	historyStatusFilter string
	historyLimit        int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect tracked swaps",
	Long: `List, inspect and refetch the swaps recorded in the history file.

Examples:
  cellroute history list
  cellroute history list --status pending
  cellroute history show 0xabc...
  cellroute history refetch 0xabc...`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked swaps, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <tx-hash>",
	Short: "Show a stored swap without querying the chains",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRefetchCmd = &cobra.Command{
	Use:   "refetch <tx-hash>",
	Short: "Search again for the missing hops of a swap",
	Long: `Clear the search progress of every unfinished hop, put hops that failed on
RPC or decoding errors back to pending and look them up again. Completed swaps
are left untouched.

Examples:
  cellroute history refetch 0xabc...`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryRefetch,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRefetchCmd)

	historyListCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (pending, success, error)")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of swaps shown")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	swaps, err := svc.history.List(cmd.Context())
	if err != nil {
		return err
	}
	if historyStatusFilter != "" {
		filtered := swaps[:0]
		for _, s := range swaps {
			if strings.EqualFold(string(s.Status), historyStatusFilter) {
				filtered = append(filtered, s)
			}
		}
		swaps = filtered
	}
	if historyLimit > 0 && len(swaps) > historyLimit {
		swaps = swaps[:historyLimit]
	}

	if jsonOutput {
		records := make([]history.Record, len(swaps))
		for i, s := range swaps {
			records[i] = history.NewRecord(s)
		}
		output, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(swaps) == 0 {
		color.Yellow("No swaps found.\n")
		fmt.Println("\nRegister one with:")
		color.Cyan("  cellroute track <tx-hash> --chain <chain> --token <token> --amount <amount> --to-token <token>\n")
		return nil
	}

	banner("TRACKED SWAPS", 110)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTRANSACTION\tROUTE\tHOPS\tSTATUS\tCREATED")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, s := range swaps {
		route := fmt.Sprintf("%s -> %s", formatData(s.SrcData, svc.registry), tokenLabel(s.DstTokenID, s.DstChainID, svc.registry))
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateHash(s.ID.Hex()), route, len(s.Hops), notify.Colored(s.Status), s.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	rule(110)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := parseTxHash(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	swap, err := svc.history.Get(cmd.Context(), id)
	if err != nil {
		return lookupError(err, id.Hex())
	}
	return printSwap(swap, svc, jsonOutput)
}

func runHistoryRefetch(cmd *cobra.Command, args []string) error {
	id, err := parseTxHash(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	tracker := svc.tracker(!jsonOutput)

	if _, err := tracker.Refetch(cmd.Context(), id); err != nil {
		return lookupError(err, id.Hex())
	}

	s := newSpinner("Searching for missing hops...", !jsonOutput)
	swap, err := tracker.Sync(cmd.Context(), id)
	s.Stop()
	if err != nil {
		return err
	}
	return printSwap(swap, svc, jsonOutput)
}

func printSwap(swap *types.Swap, svc *services, jsonOutput bool) error {
	if jsonOutput {
		output, _ := json.MarshalIndent(history.NewRecord(swap), "", "  ")
		fmt.Println(string(output))
		return nil
	}
	displaySwap(swap, svc.registry)
	return nil
}

func lookupError(err error, id string) error {
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("swap %s is not tracked", id)
	}
	return err
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func truncateHash(h string) string {
	if len(h) <= 18 {
		return h
	}
	return h[:10] + "..." + h[len(h)-6:]
}
