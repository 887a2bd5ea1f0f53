package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Size a leader movement without recording it",
	Long: `Run the sizing rules against the current exposure and print the
result. Nothing is written to the ledger.

Example:
  copytrader plan --value 100 --positions-value 25000`,
	RunE: runPlan,
}

var (
	planValue     string
	planPositions string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planValue, "value", "", "leader movement value in USD (required)")
	planCmd.Flags().StringVar(&planPositions, "positions-value", "", "leader total positions value, fetched live when omitted")
	planCmd.MarkFlagRequired("value")
}

func runPlan(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}

	value, err := decFlag("value", planValue)
	if err != nil {
		return err
	}
	positions := decimal.Zero
	if planPositions != "" {
		if positions, err = decFlag("positions-value", planPositions); err != nil {
			return err
		}
	}

	result, err := svc.Plan(context.Background(), value, positions)
	if err != nil {
		return err
	}

	fmt.Printf("Proportional size: $%s\n", result.ProportionalSize.StringFixed(2))
	fmt.Printf("Available headroom: $%s\n", result.AvailableExposure.StringFixed(2))
	if result.Allowed() {
		fmt.Printf("Copy size: $%s (%s)\n", result.CappedSize.StringFixed(2), result.Reason)
	} else {
		fmt.Printf("Rejected: %s\n", result.Reason)
	}
	return nil
}
