package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Record the realized result for an open movement",
	Long: `Mark a recorded movement as settled with its realized profit or
loss. Settlement is final; repeating it keeps the first result.

Example:
  copytrader settle --id 0xabc123 --pnl 2.50`,
	RunE: runSettle,
}

var (
	settleID  string
	settlePnL string
	settleAt  string
)

func init() {
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().StringVar(&settleID, "id", "", "movement id (required)")
	settleCmd.Flags().StringVar(&settlePnL, "pnl", "", "realized profit or loss in USD (required)")
	settleCmd.Flags().StringVar(&settleAt, "at", "", "settlement time, RFC 3339, defaults to now")
	settleCmd.MarkFlagRequired("id")
	settleCmd.MarkFlagRequired("pnl")
}

func runSettle(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}

	pnl, err := decFlag("pnl", settlePnL)
	if err != nil {
		return err
	}
	settledAt := time.Now().UTC()
	if settleAt != "" {
		settledAt, err = time.Parse(time.RFC3339, settleAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	row, err := svc.Settle(context.Background(), settleID, pnl, settledAt)
	if err != nil {
		return err
	}

	fmt.Printf("Settled %s with P/L $%s", row.MovementID, row.PnL.StringFixed(2))
	if row.EstimatedFeeUSD.Sign() > 0 {
		fmt.Printf(" (net $%s after fees)", row.PnLAfterFees().StringFixed(2))
	}
	fmt.Println()
	return nil
}
