package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cellroute/pkg/logging"
	"cellroute/pkg/parser"
	"cellroute/pkg/quote"
	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

var (
	fromChain     string
	toChain       string
	accountAddr   string
	recipientAddr string
	sortBy        string
	showAll       bool
	payable       bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token>[@chain] to <dest-token>[@chain]",
	Short: "Find and price routes for a swap",
	Long: `Build every cell route from the source token to the destination token, price
each one by simulating its swap legs on chain and print them best first.

With --recipient the initiate call for the suggested route is encoded, ready
to be sent to the source cell.

Examples:
  cellroute quote 1 AVAX to USDC@dexalot
  cellroute quote 250 USDC --from-chain avalanche to WAVAX --to-chain beam --sort duration
  cellroute quote 1 AVAX to USDC@dexalot --account 0x123... --recipient 0x123...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain name or id")
	quoteCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain name or id (defaults to the source chain)")
	quoteCmd.Flags().StringVar(&accountAddr, "account", "", "Account whose source balance is checked")
	quoteCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Receiver of the output; encodes the initiate call when set")
	quoteCmd.Flags().StringVar(&sortBy, "sort", string(types.SortByAmount), "Rank routes by 'amount' or 'duration'")
	quoteCmd.Flags().BoolVar(&showAll, "all", false, "Show every priced route, not only the suggested one")
	quoteCmd.Flags().BoolVar(&payable, "payable", false, "Receiver accepts native tokens via a payable call")
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	command, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	sortType := types.SortType(sortBy)
	if sortType != types.SortByAmount && sortType != types.SortByDuration {
		return fmt.Errorf("unknown sort %q, expected 'amount' or 'duration'", sortBy)
	}

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	req, srcToken, err := quoteRequest(svc.registry, command)
	if err != nil {
		return err
	}

	var balance quote.BalanceFunc
	if accountAddr != "" {
		if !common.IsHexAddress(accountAddr) {
			return fmt.Errorf("invalid account address %q", accountAddr)
		}
		balance = quote.NewChainBalances(svc.pool, common.HexToAddress(accountAddr)).Balance
	}

	quoter := quote.NewQuoter(
		quote.NewBuilder(svc.registry, logging.Component("quote-builder")),
		quote.NewResolver(svc.registry, quote.NewCellSimulator(svc.pool, svc.metrics), cfg.ResolverConfig(), logging.Base()),
	)

	s := newSpinner("Simulating routes...", !jsonOutput)
	routes, err := quoter.Quote(cmd.Context(), req, balance, sortType)
	s.Stop()
	if err != nil {
		return err
	}

	best := routes[0]
	var calldata []byte
	if recipientAddr != "" {
		calldata, err = initiateCall(best, srcToken, recipientAddr)
		if err != nil {
			return err
		}
	}

	shown := routes
	if !showAll {
		shown = routes[:1]
	}

	if jsonOutput {
		output := map[string]interface{}{
			"routes":    shown,
			"suggested": 0,
		}
		if calldata != nil {
			output["cell"] = best.SrcCell.Address
			output["calldata"] = hexutil.Encode(calldata)
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayRoutes(shown, len(routes))
	if calldata != nil {
		displayInitiate(best, calldata)
	}
	return nil
}

// quoteRequest resolves the parsed command against the registry. Chain flags
// take precedence over @chain suffixes; the destination chain defaults to
// the source chain.
func quoteRequest(r registry.Registry, command *parser.SwapCommand) (types.QuoteRequest, *types.Token, error) {
	srcRef := firstNonEmpty(fromChain, command.SrcChain)
	if srcRef == "" {
		return types.QuoteRequest{}, nil, fmt.Errorf("source chain is required: use --from-chain or %s@<chain>", command.SrcToken)
	}
	srcChain, err := registry.FindChain(r, srcRef)
	if err != nil {
		return types.QuoteRequest{}, nil, err
	}
	dstChain := srcChain
	if dstRef := firstNonEmpty(toChain, command.DstChain); dstRef != "" {
		if dstChain, err = registry.FindChain(r, dstRef); err != nil {
			return types.QuoteRequest{}, nil, err
		}
	}

	srcToken, err := registry.FindToken(r, srcChain.ID, command.SrcToken)
	if err != nil {
		return types.QuoteRequest{}, nil, err
	}
	dstToken, err := registry.FindToken(r, dstChain.ID, command.DstToken)
	if err != nil {
		return types.QuoteRequest{}, nil, err
	}
	amount, err := parser.ToBaseUnits(command.Amount, srcToken.Decimals)
	if err != nil {
		return types.QuoteRequest{}, nil, err
	}

	return types.QuoteRequest{
		SrcChainID: srcChain.ID,
		SrcTokenID: srcToken.ID,
		Amount:     amount,
		DstChainID: dstChain.ID,
		DstTokenID: dstToken.ID,
	}, srcToken, nil
}

func initiateCall(route *types.Route, srcToken *types.Token, receiver string) ([]byte, error) {
	if !common.IsHexAddress(receiver) {
		return nil, fmt.Errorf("invalid recipient address %q", receiver)
	}
	ins, err := quote.BuildInstructions(route, common.HexToAddress(receiver), payable, cfg.InstructionParams())
	if err != nil {
		return nil, err
	}
	token := srcToken.Address
	if srcToken.IsNative {
		token = common.Address{}
	}
	return quote.PackInitiate(token, route.SrcAmount, ins)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func displayRoutes(routes []*types.Route, total int) {
	banner("ROUTE QUOTE", 90)

	for i, route := range routes {
		label := fmt.Sprintf("Route %d", i+1)
		if i == 0 {
			label += " " + color.GreenString("(suggested)")
		}
		fmt.Printf("\n  %s  %s\n", color.CyanString(label), strings.ToUpper(string(route.Type)))
		fmt.Printf("  From:            %s %s on %s\n",
			quote.FormatAmount(route.SrcAmount, route.SrcToken.Decimals), color.YellowString(route.SrcToken.Symbol), route.SrcChain.Name)
		fmt.Printf("  To:              ~%s %s on %s\n",
			quote.FormatAmount(route.DstAmount, route.DstToken.Decimals), color.YellowString(route.DstToken.Symbol), route.DstChain.Name)
		fmt.Printf("  Minimum:         %s %s\n", quote.FormatAmount(route.MinDstAmount, route.DstToken.Decimals), route.DstToken.Symbol)
		fmt.Printf("  Estimated Time:  %s\n", route.Duration)
		fmt.Printf("  Gas Estimate:    %d\n", route.TotalGas)
		if accountAddr != "" {
			balance := color.GreenString("sufficient")
			if !route.SufficientBalance {
				balance = color.RedString("insufficient")
			}
			fmt.Printf("  Balance:         %s\n", balance)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\n  STEP\tFROM\tTO")
		for _, a := range route.Actions {
			fmt.Fprintf(w, "  %s\t%s %s (%d)\t%s %s (%d)\n",
				a.Type, a.SrcAmountFormatted, a.SrcTokenID, a.SrcChainID,
				a.DstAmountFormatted, a.DstTokenID, a.DstChainID)
		}
		w.Flush()
	}

	if total > len(routes) {
		fmt.Printf("\n  %d more route(s), use --all to show them\n", total-len(routes))
	}
	rule(90)
}

func displayInitiate(route *types.Route, calldata []byte) {
	color.Yellow("Initiate the swap by calling the source cell:\n")
	fmt.Printf("  Cell:      %s\n", color.CyanString(route.SrcCell.Address.Hex()))
	if route.SrcToken.IsNative {
		fmt.Printf("  Value:     %s wei\n", route.SrcAmount)
	}
	fmt.Printf("  Calldata:  %s\n\n", hexutil.Encode(calldata))
	fmt.Println("Track it once submitted with:")
	color.Cyan("  cellroute track <tx-hash> --chain %s --token %s --amount %s --to-chain %d --to-token %s\n",
		route.SrcChain.Name, route.SrcToken.ID, quote.FormatAmount(route.SrcAmount, route.SrcToken.Decimals), route.DstChain.ID, route.DstToken.ID)
}
