package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cellroute/pkg/logging"
	"cellroute/pkg/metrics"
	"cellroute/pkg/parser"
	"cellroute/pkg/registry"
	"cellroute/pkg/status"
	"cellroute/pkg/types"
)

var (
	trackChain     string
	trackToken     string
	trackAmount    string
	trackToChain   string
	trackToToken   string
	trackAccount   string
	trackRecipient string
	trackFollow    bool
)

var trackCmd = &cobra.Command{
	Use:   "track [tx-hash]",
	Short: "Register a submitted swap, or run the tracking daemon",
	Long: `With a transaction hash, register the swap it started so it can be followed
hop by hop. Add --follow to keep watching until it finishes.

Without arguments, run a daemon that follows every unfinished swap in the
history, polling each chain for new blocks and serving Prometheus metrics.

Examples:
  # Register a swap of 1 AVAX into USDC on dexalot
  cellroute track 0xabc... --chain avalanche --token AVAX --amount 1 \
    --to-chain dexalot --to-token USDC --account 0x123...

  # Register and follow it
  cellroute track 0xabc... --chain avalanche --token AVAX --amount 1 \
    --to-chain dexalot --to-token USDC --account 0x123... --follow

  # Follow every pending swap
  cellroute track`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().StringVar(&trackChain, "chain", "", "Chain the transaction was sent on")
	trackCmd.Flags().StringVar(&trackToken, "token", "", "Token sent into the source cell")
	trackCmd.Flags().StringVar(&trackAmount, "amount", "", "Amount sent, in token units (e.g. 1.5)")
	trackCmd.Flags().StringVar(&trackToChain, "to-chain", "", "Destination chain (defaults to --chain)")
	trackCmd.Flags().StringVar(&trackToToken, "to-token", "", "Token expected on the destination chain")
	trackCmd.Flags().StringVar(&trackAccount, "account", "", "Account that sent the transaction")
	trackCmd.Flags().StringVar(&trackRecipient, "recipient", "", "Receiver of the output (defaults to --account)")
	trackCmd.Flags().BoolVarP(&trackFollow, "follow", "f", false, "Keep watching the swap until it finishes")
}

func runTrack(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	tracker := svc.tracker(true)
	ctx := cmd.Context()

	if len(args) == 0 {
		return runDaemon(ctx, svc, tracker)
	}

	req, err := trackRequest(svc.registry, args[0])
	if err != nil {
		return err
	}
	swap, err := tracker.Track(ctx, req)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Tracking swap %s", swap.ID.Hex()))
	if !trackFollow {
		fmt.Println("Check it with:")
		color.Cyan("  cellroute status %s\n", swap.ID.Hex())
		return nil
	}

	watcher := status.NewWatcher(tracker, svc.pool, svc.registry.Chains(), cfg.PollInterval)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := svc.history.Get(ctx, swap.ID)
			if err != nil {
				return err
			}
			if current.Status.Terminal() {
				displaySwap(current, svc.registry)
				return nil
			}
		}
	}
}

func trackRequest(r registry.Registry, txHash string) (status.TrackRequest, error) {
	id, err := parseTxHash(txHash)
	if err != nil {
		return status.TrackRequest{}, err
	}
	if trackChain == "" || trackToken == "" || trackAmount == "" || trackToToken == "" {
		return status.TrackRequest{}, errors.New("--chain, --token, --amount and --to-token are required")
	}

	srcChain, err := registry.FindChain(r, trackChain)
	if err != nil {
		return status.TrackRequest{}, err
	}
	dstChain := srcChain
	if trackToChain != "" {
		if dstChain, err = registry.FindChain(r, trackToChain); err != nil {
			return status.TrackRequest{}, err
		}
	}
	srcToken, err := registry.FindToken(r, srcChain.ID, parser.NormalizeTokenSymbol(trackToken))
	if err != nil {
		return status.TrackRequest{}, err
	}
	dstToken, err := registry.FindToken(r, dstChain.ID, parser.NormalizeTokenSymbol(trackToToken))
	if err != nil {
		return status.TrackRequest{}, err
	}
	amount, err := parser.ParseAmount(trackAmount)
	if err != nil {
		return status.TrackRequest{}, err
	}
	units, err := parser.ToBaseUnits(amount, srcToken.Decimals)
	if err != nil {
		return status.TrackRequest{}, err
	}

	account, err := optionalAddress("account", trackAccount)
	if err != nil {
		return status.TrackRequest{}, err
	}
	recipient, err := optionalAddress("recipient", trackRecipient)
	if err != nil {
		return status.TrackRequest{}, err
	}

	return status.TrackRequest{
		TxHash:     id,
		ChainID:    srcChain.ID,
		Account:    account,
		Recipient:  recipient,
		SrcTokenID: srcToken.ID,
		Amount:     units,
		DstChainID: dstChain.ID,
		DstTokenID: dstToken.ID,
	}, nil
}

func optionalAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func runDaemon(ctx context.Context, svc *services, tracker *status.Tracker) error {
	logger := logging.Component("daemon")
	chains := svc.registry.Chains()

	swaps, err := svc.history.List(ctx)
	if err != nil {
		return err
	}
	pending := 0
	for _, swap := range swaps {
		if !swap.Status.Terminal() {
			pending++
		}
	}

	banner("CELLROUTE TRACKING DAEMON", 70)
	fmt.Printf("\nFollowing %d unfinished swap(s) across %d chain(s)\n\n", pending, len(chains))
	for _, c := range chains {
		fmt.Printf("  %s  %s\n", color.CyanString("%-12s", c.Name), color.HiBlackString(chainSummary(c)))
	}
	fmt.Println()
	color.Cyan("• Polling chain heads every %s", cfg.PollInterval)
	if cfg.MetricsAddr != "" {
		color.Cyan("• Serving metrics on %s/metrics", cfg.MetricsAddr)
	}
	color.Magenta("• Register new swaps with 'cellroute track <tx-hash> ...' in another terminal")
	color.Yellow("• Press Ctrl+C to stop gracefully\n")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(svc.gatherer))
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	watcher := status.NewWatcher(tracker, svc.pool, chains, cfg.PollInterval)
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Yellow("\nReceived shutdown signal. Stopping watcher gracefully...")
	watcher.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	color.Green("\n✓ Daemon stopped successfully.")
	fmt.Println("\nSwap records are saved in", svc.history.Path())
	fmt.Println(strings.Repeat("=", 70) + "\n")
	return nil
}

func chainSummary(c *types.Chain) string {
	return fmt.Sprintf("id %d, %d cell(s), block time %s", c.ID, len(c.Cells), c.AvgBlockTime)
}
