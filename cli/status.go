package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the profile and the account summary",
	RunE:  runStatus,
}

var (
	statusMovements bool
	statusJSON      bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusMovements, "movements", false, "also list every movement")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	profile := svc.Profile()
	if profile == nil {
		fmt.Println("Not configured. Run `copytrader configure` first.")
		return nil
	}

	if statusJSON {
		d, err := svc.Dashboard(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(map[string]any{
			"profile":   profile,
			"dashboard": d,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	mode := "real"
	if profile.SimulationMode {
		mode = "simulation"
	}
	fmt.Printf("Following %s (%s mode)\n", profile.LeaderAddress, mode)
	fmt.Printf("  Limits: %s%% per trade, %s%% total exposure, $%s minimum copy\n",
		profile.MaxTradePct, profile.MaxTotalExposurePct, profile.MinCopyUSD)

	d, err := svc.Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Equity: $%s  Exposure: $%s  Available: $%s\n",
		d.Account.Equity.StringFixed(2), d.Account.Exposure.StringFixed(2), d.Account.Available.StringFixed(2))
	fmt.Printf("  Movements: %d total, %d open, %d settled\n",
		d.TotalCount, d.OpenCount, d.SettledCount)
	fmt.Printf("  Realized P/L: $%s  Fees paid: $%s\n",
		d.Account.RealizedPnL.StringFixed(2), d.Account.FeesPaid.StringFixed(2))

	if !statusMovements {
		return nil
	}

	movements, err := svc.Movements(ctx)
	if err != nil {
		return err
	}
	if len(movements) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Printf("%-6s %-28s %-30s %-10s %10s %10s\n", "SEQ", "ID", "MARKET", "STATUS", "COPIED", "P/L")
	for _, m := range movements {
		id := m.MovementID
		if len(id) > 28 {
			id = id[:25] + "..."
		}
		market := m.MarketID
		if len(market) > 30 {
			market = market[:27] + "..."
		}
		fmt.Printf("%-6d %-28s %-30s %-10s %10s %10s\n",
			m.Seq, id, market, m.Status, m.CopiedValue.StringFixed(2), m.PnL.StringFixed(2))
	}
	return nil
}
