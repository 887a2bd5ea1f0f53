package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show realized P/L by day",
	RunE:  runDashboard,
}

var dashboardJSON bool

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().BoolVar(&dashboardJSON, "json", false, "print the dashboard as JSON")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}

	d, err := svc.Dashboard(context.Background())
	if err != nil {
		return err
	}

	if dashboardJSON {
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(d.Daily) == 0 {
		fmt.Println("No settled movements yet.")
		return nil
	}

	fmt.Printf("%-12s %12s %12s\n", "DAY", "P/L", "CUMULATIVE")
	for i, day := range d.Daily {
		fmt.Printf("%-12s %12s %12s\n", day.Day, day.PnL.StringFixed(2), d.Cumulative[i].PnL.StringFixed(2))
	}
	fmt.Println()
	fmt.Printf("Equity: $%s on $%s allocated (exposure $%s)\n",
		d.Account.Equity.StringFixed(2), d.Account.AllocatedFunds.StringFixed(2), d.Account.Exposure.StringFixed(2))
	return nil
}
