package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"polymarket-copytrader/service"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Size and record one leader movement in the ledger",
	Long: `Run the sizing rules and, when the movement passes them, append it
to the ledger as an open copied position.

Example:
  copytrader record --market will-it-rain --value 100 --price 0.5 --outcome Yes`,
	RunE: runRecord,
}

var (
	recordID        string
	recordMarket    string
	recordValue     string
	recordPrice     string
	recordPositions string
	recordSide      string
	recordOutcome   string
	recordCopied    string
)

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordID, "id", "", "movement id, generated when omitted")
	recordCmd.Flags().StringVar(&recordMarket, "market", "", "market slug (required)")
	recordCmd.Flags().StringVar(&recordValue, "value", "", "leader movement value in USD (required)")
	recordCmd.Flags().StringVar(&recordPrice, "price", "", "leader entry price")
	recordCmd.Flags().StringVar(&recordPositions, "positions-value", "", "leader total positions value, fetched live when omitted")
	recordCmd.Flags().StringVar(&recordSide, "side", "BUY", "movement side")
	recordCmd.Flags().StringVar(&recordOutcome, "outcome", "", "outcome the leader bought")
	recordCmd.Flags().StringVar(&recordCopied, "copied", "", "executed copy value when it deviated from the plan")
	recordCmd.MarkFlagRequired("market")
	recordCmd.MarkFlagRequired("value")
}

func runRecord(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}

	in := service.RecordInput{
		MovementID: recordID,
		MarketID:   recordMarket,
		Side:       recordSide,
		Outcome:    recordOutcome,
	}
	if in.LeaderValue, err = decFlag("value", recordValue); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"price", recordPrice, &in.LeaderPrice},
		{"positions-value", recordPositions, &in.PositionsValue},
		{"copied", recordCopied, &in.CopiedValue},
	} {
		if f.raw == "" {
			continue
		}
		if *f.dst, err = decFlag(f.name, f.raw); err != nil {
			return err
		}
	}

	row, plan, err := svc.Record(context.Background(), in)
	if err != nil {
		return err
	}
	if !plan.Allowed() {
		fmt.Printf("Not recorded: %s\n", plan.Reason)
		return nil
	}

	fmt.Printf("Recorded movement %s (seq %d)\n", row.MovementID, row.Seq)
	fmt.Printf("  Market: %s  Copied: $%s  Planned: $%s (%s)\n",
		row.MarketID, row.CopiedValue.StringFixed(2), row.PlannedValue.StringFixed(2), plan.Reason)
	if row.EstimatedFeeUSD.Sign() > 0 {
		fmt.Printf("  Estimated fee: $%s\n", row.EstimatedFeeUSD.StringFixed(2))
	}
	return nil
}
