package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List bridge pools of configured assets",
	Args:  cobra.NoArgs,
	RunE:  runPools,
}

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <from> <to>",
	Short: "Quote a swap",
	Long: `Quote swapping an amount of one asset for another through the bridge pools.
Amounts are in whole units of the source asset.

Examples:
  swapctl quote 1 BTC.BTC ETH.ETH
  swapctl quote 250 USDC.ETH XLM.XLM --json`,
	Args: cobra.ExactArgs(3),
	RunE: runQuote,
}

var rateCmd = &cobra.Command{
	Use:   "rate <from> <to>",
	Short: "Show the exchange rate for one whole unit",
	Args:  cobra.ExactArgs(2),
	RunE:  runRate,
}

func init() {
	rootCmd.AddCommand(poolsCmd, quoteCmd, rateCmd)
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

func runPools(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	s := newSpinner("Fetching pools...")
	if !jsonOutput {
		s.Start()
	}
	resp, err := e.service.ListPools(cmd.Context())
	s.Stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}
	displayPools(resp)
	return nil
}

func displayPools(resp *swap.PoolsResponse) {
	fmt.Println("\n" + strings.Repeat("=", 78))
	color.Green("  BRIDGE POOLS (%s)", resp.Bridge)
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("  %-14s %-10s %20s %20s %10s\n", "ASSET", "STATUS", "ASSET DEPTH", "BRIDGE DEPTH", "PRICE")
	for _, p := range resp.Pools {
		fmt.Printf("  %-14s %-10s %20s %20s %10s\n",
			color.CyanString("%-14s", p.Ticker),
			poolStatus(p.Status),
			p.BalanceAsset.Shift(-8).StringFixed(8),
			p.BalanceBridge.Shift(-8).StringFixed(8),
			p.Price.StringFixed(4),
		)
	}
	fmt.Printf("\n  Fetched at %s\n\n", resp.FetchedAt.Format(time.RFC3339))
}

func poolStatus(status string) string {
	if strings.EqualFold(status, "available") {
		return color.GreenString("%-10s", status)
	}
	return color.YellowString("%-10s", status)
}

func runQuote(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[0])
	}

	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	s := newSpinner("Fetching quote...")
	if !jsonOutput {
		s.Start()
	}
	resp, err := e.service.Quote(cmd.Context(), &swap.QuoteRequest{From: args[1], To: args[2], Amount: amount})
	s.Stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}
	displayQuote(resp)
	return nil
}

func displayQuote(resp *swap.QuoteResponse) {
	if !resp.Available {
		color.Yellow("\n  No quote available: %s\n\n", resp.Reason)
		return
	}
	q := resp.Quote

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                         SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  You send:        %s %s\n", q.InputAmount, color.CyanString(q.From))
	fmt.Printf("  You receive:     %s %s\n", color.GreenString(q.OutputAmount.String()), color.CyanString(q.To))
	fmt.Printf("  Rate:            1 %s = %s %s\n", q.From, q.ExchangeRate, q.To)
	fmt.Printf("  Liquidity fee:   %s %s\n", q.LiquidityFee, q.To)
	fmt.Printf("  Outbound fee:    %s %s\n", q.OutboundFee, q.To)
	fmt.Printf("  Price impact:    %s\n", impact(q.PriceImpactPct))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func impact(pct decimal.Decimal) string {
	s := pct.StringFixed(2) + "%"
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(5)):
		return color.RedString(s)
	case pct.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}

func runRate(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.service.Rate(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	if !resp.Available {
		color.Yellow("\n  No rate available for %s -> %s\n\n", resp.From, resp.To)
		return nil
	}
	fmt.Printf("\n  1 %s = %s %s\n\n", color.CyanString(resp.From), color.GreenString(resp.Rate.String()), color.CyanString(resp.To))
	return nil
}
