package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"polymarket-copytrader/risk"
)

// RiskLevel is an operator-facing label stored with the profile. It does not
// change the governor math; the explicit percentages do.
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskBalanced     RiskLevel = "balanced"
	RiskAggressive   RiskLevel = "aggressive"
)

const profileFile = "copy_trader.json"

// Minimum poll intervals per mode. Simulation runs against synthetic ticks
// and may poll faster than the public API allows.
const (
	MinPollMS           = 500
	MinPollSimulationMS = 50
)

// ErrNotConfigured is returned when no copy profile has been saved yet.
var ErrNotConfigured = errors.New("copy-trader is not configured, run `copytrader configure` first")

// Profile is the configured copy-trading profile: who to follow and within
// which limits. Immutable during a run unless explicitly reconfigured.
type Profile struct {
	LeaderAddress       string          `json:"leader_address"`
	AllocatedFunds      decimal.Decimal `json:"allocated_funds"`
	MaxTradePct         decimal.Decimal `json:"max_trade_pct"`
	MaxTotalExposurePct decimal.Decimal `json:"max_total_exposure_pct"`
	MinCopyUSD          decimal.Decimal `json:"min_copy_usd"`
	PollIntervalMS      int             `json:"poll_interval_ms"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	SimulationMode      bool            `json:"simulation_mode"`
}

// Validate checks the profile before it is saved or applied.
func (p *Profile) Validate() error {
	if !common.IsHexAddress(p.LeaderAddress) {
		return fmt.Errorf("leader address %q is not a valid 0x address", p.LeaderAddress)
	}
	if p.AllocatedFunds.Sign() <= 0 {
		return errors.New("allocated-funds must be > 0")
	}
	for name, v := range map[string]decimal.Decimal{
		"max-trade-pct":          p.MaxTradePct,
		"max-total-exposure-pct": p.MaxTotalExposurePct,
	} {
		if v.Sign() <= 0 || v.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	if p.MinCopyUSD.Sign() < 0 {
		return errors.New("min-copy-usd cannot be negative")
	}
	if p.PollIntervalMS < p.minPollMS() {
		return fmt.Errorf("poll-interval-ms %d below the %dms floor for this mode",
			p.PollIntervalMS, p.minPollMS())
	}
	switch p.RiskLevel {
	case RiskConservative, RiskBalanced, RiskAggressive:
	default:
		return fmt.Errorf("unknown risk level %q", p.RiskLevel)
	}
	return nil
}

func (p *Profile) minPollMS() int {
	if p.SimulationMode {
		return MinPollSimulationMS
	}
	return MinPollMS
}

// Policy converts the profile to the governor's limits.
func (p *Profile) Policy() risk.Policy {
	return risk.Policy{
		AllocatedFunds:      p.AllocatedFunds,
		MaxTradePct:         p.MaxTradePct,
		MaxTotalExposurePct: p.MaxTotalExposurePct,
		MinCopyUSD:          p.MinCopyUSD,
	}
}

// LedgerFile returns the ledger filename for the profile's storage mode.
// Simulation writes to a separate ledger so dry runs never pollute real
// accounting.
func (p *Profile) LedgerFile() string {
	if p != nil && p.SimulationMode {
		return "copy_trader_sim_db.jsonl"
	}
	return "copy_trader_real_db.jsonl"
}

// SaveProfile persists the profile under dir.
func SaveProfile(dir string, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, profileFile), raw, 0o600)
}

// LoadProfile reads the saved profile, or ErrNotConfigured when missing.
func LoadProfile(dir string) (*Profile, error) {
	raw, err := os.ReadFile(filepath.Join(dir, profileFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("config: read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("config: invalid profile: %w", err)
	}
	return &p, nil
}
