package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

var (
	memoPrefixLen int
	memoSuffixLen int
)

var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Build and match swap memos",
}

var memoBuildCmd = &cobra.Command{
	Use:   "build <swap|out|refund> <args...>",
	Short: "Build a memo",
	Long: `Build a memo in the bridge wire format.

Examples:
  swapctl memo build swap XLM.XLM GDESTINATION
  swapctl memo build out 0xaabbccdd...
  swapctl memo build refund 0xaabbccdd...`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		m, err := buildMemo(args[0], args[1:])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"memo": m})
		}
		fmt.Println(m)
		return nil
	},
}

var memoMatchCmd = &cobra.Command{
	Use:   "match <memo> <source-hash>",
	Short: "Check whether a settlement memo references a source transaction",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		matcher := memo.NewMatcher(memoPrefixLen, memoSuffixLen)
		ok := matcher.Matches(args[0], args[1])
		if jsonOutput {
			return printJSON(map[string]any{"match": ok, "truncated": matcher.Truncate(args[1])})
		}
		if ok {
			color.Green("match: %s references %s", args[0], matcher.Truncate(args[1]))
		} else {
			color.Red("no match: %s does not reference %s", args[0], matcher.Truncate(args[1]))
		}
		return nil
	},
}

func init() {
	memoMatchCmd.Flags().IntVar(&memoPrefixLen, "prefix-len", memo.DefaultPrefixLen, "Characters kept before the ellipsis in truncated hashes")
	memoMatchCmd.Flags().IntVar(&memoSuffixLen, "suffix-len", memo.DefaultSuffixLen, "Characters kept after the ellipsis in truncated hashes")
	memoCmd.AddCommand(memoBuildCmd, memoMatchCmd)
	rootCmd.AddCommand(memoCmd)
}

func buildMemo(kind string, args []string) (string, error) {
	switch memo.Kind(strings.ToUpper(kind)) {
	case memo.KindSwap:
		if len(args) != 2 {
			return "", fmt.Errorf("swap memo needs <ticker> <address>")
		}
		return memo.BuildSwap(args[0], args[1]), nil
	case memo.KindOut:
		if len(args) != 1 {
			return "", fmt.Errorf("out memo needs <source-hash>")
		}
		return memo.BuildOut(args[0]), nil
	case memo.KindRefund:
		if len(args) != 1 {
			return "", fmt.Errorf("refund memo needs <source-hash>")
		}
		return memo.BuildRefund(args[0]), nil
	default:
		return "", fmt.Errorf("unknown memo kind %q", kind)
	}
}
