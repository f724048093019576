package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainsafe/switchly-settlement/pkg/settlement"
)

var watchReq settlement.Request

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a swap until it settles",
	Long: `Follow a submitted swap from the source deposit through the bridge to the
destination payout. Polling stops when the swap completes, fails or times out.

Examples:
  swapctl watch --source-chain ETH --hash 0xabc... --dest-chain XLM --dest-address GDEST...
  swapctl watch --source-chain BTC --hash abc... --memo SWAP:ETH.ETH:0xdest...`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchReq.SourceChain, "source-chain", "", "Chain of the source transaction (required)")
	watchCmd.Flags().StringVar(&watchReq.SourceHash, "hash", "", "Source transaction hash (required)")
	watchCmd.Flags().StringVar(&watchReq.DestChain, "dest-chain", "", "Destination chain")
	watchCmd.Flags().StringVar(&watchReq.DestAddress, "dest-address", "", "Destination address")
	watchCmd.Flags().StringVar(&watchReq.Memo, "memo", "", "SWAP memo of the source transaction")
	_ = watchCmd.MarkFlagRequired("source-chain")
	_ = watchCmd.MarkFlagRequired("hash")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	correlator := e.components.NewCorrelator()
	defer correlator.Stop()

	session, err := correlator.Start(ctx, watchReq)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Println("\n" + strings.Repeat("=", 70))
		color.Green("  WATCHING SETTLEMENT %s", session.ID())
		fmt.Println(strings.Repeat("=", 70))
	}
	return follow(ctx, session)
}

func follow(ctx context.Context, session *settlement.Session) error {
	s := newSpinner("Waiting for the next observation...")
	if !jsonOutput {
		s.Start()
		defer s.Stop()
	}

	var last *settlement.Status
	for {
		select {
		case <-ctx.Done():
			session.Cancel()
			s.Stop()
			color.Yellow("\n  Stopped watching. The swap may still settle.\n\n")
			return nil
		case st, ok := <-session.Updates():
			if !ok {
				s.Stop()
				return finalResult(session.Latest())
			}
			s.Stop()
			if err := printUpdate(last, st); err != nil {
				return err
			}
			last = st
			if !jsonOutput && !st.Terminal() {
				s.Start()
			}
		}
	}
}

func printUpdate(prev, st *settlement.Status) error {
	if jsonOutput {
		return printJSON(st)
	}
	if prev != nil && prev.State == st.State && !st.Terminal() {
		return nil
	}
	fmt.Printf("  %s  %s", st.UpdatedAt.Format("15:04:05"), coloredState(st.State))
	if st.Reason != settlement.ReasonNone {
		fmt.Printf(" (%s)", st.Reason)
	}
	fmt.Println()
	if st.Action != nil && st.Action.OutHash != "" && (prev == nil || prev.Action == nil || prev.Action.OutHash == "") {
		fmt.Printf("             Payout Tx: %s\n", color.HiBlackString(st.Action.OutHash))
	}
	return nil
}

func finalResult(st *settlement.Status) error {
	if !jsonOutput {
		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("  Final state:     %s after %d polls\n", coloredState(st.State), st.Polls)
		if st.Target != nil {
			fmt.Printf("  Destination Tx:  %s\n", color.HiBlackString(st.Target.Hash))
		}
		fmt.Println(strings.Repeat("=", 70) + "\n")
	}
	switch st.State {
	case settlement.StateFailed:
		return &settlement.SettlementFailedError{Reason: st.Reason, SourceHash: st.Request.SourceHash}
	case settlement.StateTimeout:
		return settlement.ErrSettlementTimeout
	default:
		return nil
	}
}

func coloredState(state settlement.State) string {
	s := string(state)
	switch state {
	case settlement.StateCompleted:
		return color.GreenString(s)
	case settlement.StateSent, settlement.StateBridgeProcessing, settlement.StateAwaitingDestination:
		return color.YellowString(s)
	case settlement.StateFailed, settlement.StateTimeout:
		return color.RedString(s)
	default:
		return s
	}
}
