// Package cli wires the copytrader commands. Every command loads the runtime
// config, builds the service against the saved profile and prints plain text
// for terminal use; the serve command exposes the same service over HTTP.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"polymarket-copytrader/api"
	"polymarket-copytrader/config"
	"polymarket-copytrader/service"
	"polymarket-copytrader/storage"
)

var rootCmd = &cobra.Command{
	Use:   "copytrader",
	Short: "Copy-trade a Polymarket leader with proportional risk limits",
	Long: `Copytrader follows one Polymarket account and records proportionally
sized copies of its movements in a local append-only ledger.

It provides commands for:
  - Configuring the leader, allocated funds and risk limits
  - Sizing a movement against the current exposure without recording it
  - Recording and settling copied movements
  - Inspecting the ledger and the realized P/L dashboard
  - Running the monitoring loop with the web dashboard`,
	SilenceUsage: true,
}

var cfgPath string

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("COPYTRADER_CONFIG"), "path to the runtime config file")
}

// buildService loads the runtime config and the saved profile. Commands that
// need a configured profile get a ready-to-use service; the profile and the
// ledger are nil when configure has not run yet.
func buildService() (*config.Config, *service.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	var (
		profile *config.Profile
		ledger  storage.Ledger
	)
	profile, err = config.LoadProfile(cfg.Data.Dir)
	switch {
	case err == config.ErrNotConfigured:
		profile = nil
	case err != nil:
		return nil, nil, err
	default:
		fl, err := storage.OpenFile(filepath.Join(cfg.Data.Dir, profile.LedgerFile()))
		if err != nil {
			return nil, nil, err
		}
		ledger = fl
	}

	client := api.NewClient(cfg.Upstream.DataAPIURL)
	return cfg, service.NewService(cfg, client, ledger, profile), nil
}

// decFlag parses a decimal flag value, rejecting empty strings.
func decFlag(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("--%s is required", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
