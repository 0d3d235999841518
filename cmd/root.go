package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"cellroute/config"
	"cellroute/pkg/chain"
	"cellroute/pkg/history"
	"cellroute/pkg/logging"
	"cellroute/pkg/metrics"
	"cellroute/pkg/notify"
	"cellroute/pkg/registry"
	"cellroute/pkg/status"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cellroute",
	Short: "Quote and track cross-chain swaps through cell router contracts",
	Long: `cellroute finds, prices and follows swaps that travel through cell router
contracts across EVM chains connected by a cross-chain messenger.

Routes are priced by simulating each swap leg against the cells on chain, and
submitted swaps are followed hop by hop from their receipts until the tokens
reach the recipient.

Examples:
  cellroute chains
  cellroute quote 1 AVAX to USDC@dexalot --account 0x123...
  cellroute status 0xabc...
  cellroute track 0xabc... --chain avalanche --token AVAX --amount 1 --to-chain dexalot --to-token USDC`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		logging.SetLevel(level)
		return nil
	},
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.cellroute.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// services are the collaborators shared by the commands, built from the
// loaded configuration.
type services struct {
	registry *registry.Static
	pool     *chain.Pool
	history  *history.FileStore
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func newServices() (*services, error) {
	reg, err := registry.LoadFile(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	store, err := history.NewFileStore(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	promReg := prometheus.NewRegistry()
	return &services{
		registry: reg,
		pool:     chain.NewPool(reg),
		history:  store,
		metrics:  metrics.NewMetrics(promReg),
		gatherer: promReg,
	}, nil
}

// tracker builds a status tracker that reports to the log and, unless the
// output is JSON, to the console.
func (s *services) tracker(console bool) *status.Tracker {
	notifiers := notify.Multi{notify.NewLogNotifier(logging.Component("notify"))}
	if console {
		notifiers = append(notifiers, notify.NewConsoleNotifier(os.Stdout))
	}
	return status.NewTracker(s.registry, s.pool, s.history, notifiers, s.metrics, cfg.TrackerConfig(), logging.Base())
}

func (s *services) Close() {
	s.pool.Close()
}

func newSpinner(suffix string, enabled bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	if enabled {
		s.Start()
	}
	return s
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}

func banner(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	pad := (width - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	color.Green(strings.Repeat(" ", pad) + title)
	fmt.Println(strings.Repeat("=", width))
}

func rule(width int) {
	fmt.Println("\n" + strings.Repeat("=", width) + "\n")
}
