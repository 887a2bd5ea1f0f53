package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"polymarket-copytrader/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the leader, allocated funds and risk limits",
	Long: `Save the copy-trading profile. Configuration is required before any
other command can run.

Example:
  copytrader configure --leader 0xabc... --funds 1000 \
    --max-trade-pct 5 --max-exposure-pct 70 --min-copy 1`,
	RunE: runConfigure,
}

var (
	configureLeader     string
	configureFunds      string
	configureTradePct   string
	configureExpoPct    string
	configureMinCopy    string
	configureIntervalMS int
	configureRisk       string
	configureSimulation bool
)

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&configureLeader, "leader", "", "leader wallet address (required)")
	configureCmd.Flags().StringVar(&configureFunds, "funds", "", "allocated funds in USD (required)")
	configureCmd.Flags().StringVar(&configureTradePct, "max-trade-pct", "5", "per-trade cap as a percentage of allocated funds")
	configureCmd.Flags().StringVar(&configureExpoPct, "max-exposure-pct", "70", "total exposure cap as a percentage of allocated funds")
	configureCmd.Flags().StringVar(&configureMinCopy, "min-copy", "1", "minimum copy size in USD")
	configureCmd.Flags().IntVar(&configureIntervalMS, "poll-interval-ms", 3000, "poll interval in milliseconds")
	configureCmd.Flags().StringVar(&configureRisk, "risk", string(config.RiskBalanced), "risk level label: conservative, balanced or aggressive")
	configureCmd.Flags().BoolVar(&configureSimulation, "simulation", false, "record to the simulation ledger instead of the real one")
	configureCmd.MarkFlagRequired("leader")
	configureCmd.MarkFlagRequired("funds")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	_, svc, err := buildService()
	if err != nil {
		return err
	}

	profile := &config.Profile{
		LeaderAddress:  configureLeader,
		PollIntervalMS: configureIntervalMS,
		RiskLevel:      config.RiskLevel(configureRisk),
		SimulationMode: configureSimulation,
	}
	if profile.AllocatedFunds, err = decFlag("funds", configureFunds); err != nil {
		return err
	}
	if profile.MaxTradePct, err = decFlag("max-trade-pct", configureTradePct); err != nil {
		return err
	}
	if profile.MaxTotalExposurePct, err = decFlag("max-exposure-pct", configureExpoPct); err != nil {
		return err
	}
	if profile.MinCopyUSD, err = decFlag("min-copy", configureMinCopy); err != nil {
		return err
	}

	if err := svc.Configure(context.Background(), profile); err != nil {
		return err
	}

	mode := "real"
	if profile.SimulationMode {
		mode = "simulation"
	}
	fmt.Printf("Configured to follow %s\n", profile.LeaderAddress)
	fmt.Printf("  Allocated: $%s  Per-trade cap: %s%%  Exposure cap: %s%%  Min copy: $%s\n",
		profile.AllocatedFunds, profile.MaxTradePct, profile.MaxTotalExposurePct, profile.MinCopyUSD)
	fmt.Printf("  Mode: %s  Poll interval: %dms  Risk level: %s\n",
		mode, profile.PollIntervalMS, profile.RiskLevel)
	return nil
}
