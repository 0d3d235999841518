package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cellroute/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
)

var chainsCmd = &cobra.Command{
	Use:     "chains",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the chains, cells and tokens of the registry",
	Long: `List every chain in the registry with its cells and tokens, and where each
token can be bridged.

Examples:
  cellroute chains
  cellroute chains --chain avalanche
  cellroute chains --symbol USDC`,
	RunE: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)

	chainsCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by chain name or id")
	chainsCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter tokens by symbol")
}

type chainListing struct {
	Chain  *types.Chain   `json:"chain"`
	Tokens []*types.Token `json:"tokens"`
}

func runChains(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	var listings []chainListing
	for _, c := range svc.registry.Chains() {
		if filterChain != "" && !strings.EqualFold(c.Name, filterChain) && fmt.Sprint(c.ID) != filterChain {
			continue
		}
		var tokens []*types.Token
		for _, t := range svc.registry.TokensOnChain(c.ID) {
			if filterSymbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(filterSymbol)) {
				continue
			}
			tokens = append(tokens, t)
		}
		listings = append(listings, chainListing{Chain: c, Tokens: tokens})
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(listings, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}
	displayChains(listings)
	return nil
}

func displayChains(listings []chainListing) {
	if len(listings) == 0 {
		fmt.Println("\nNo chains found matching the criteria.")
		return
	}

	banner("CELL NETWORK", 90)

	tokens := 0
	for _, l := range listings {
		c := l.Chain
		color.Cyan("\n%s (%d)", strings.ToUpper(c.Name), c.ID)
		fmt.Println(strings.Repeat("-", 90))
		fmt.Printf("  Blockchain ID:  %s\n", color.HiBlackString(c.BlockchainID.Hex()))
		for _, cell := range c.Cells {
			swap := "hop only"
			if cell.CanSwap {
				swap = "swaps"
			}
			fmt.Printf("  Cell:           %s  %s, %s\n", color.HiBlackString(cell.Address.Hex()), cell.Kind, swap)
		}

		for _, t := range l.Tokens {
			tokens++
			address := "native"
			if !t.IsNative {
				address = truncateString(t.Address.Hex(), 40)
			}
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(t.Symbol), t.Decimals, color.HiBlackString(address))
			for _, b := range t.Bridges {
				fmt.Printf("      -> %s on chain %d via %s\n", b.DstTokenID, b.DstChainID, b.Name)
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", tokens, len(listings))
}
