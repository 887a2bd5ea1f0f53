package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementStatus tracks a movement through its lifecycle. Settled and
// Rejected are terminal.
type MovementStatus string

const (
	StatusPlanned  MovementStatus = "planned"
	StatusRecorded MovementStatus = "recorded"
	StatusSettled  MovementStatus = "settled"
	StatusRejected MovementStatus = "rejected"
)

// Movement is one leader activity considered for copying. A movement is
// persisted as one or more ledger rows: an append when recorded and a second
// terminal row when settled. Seq is assigned by the ledger and is strictly
// increasing across rows.
type Movement struct {
	Seq        int64  `json:"seq"`
	MovementID string `json:"movement_id"`
	MarketID   string `json:"market_id"`

	LeaderValue  decimal.Decimal `json:"leader_value"`
	LeaderPrice  decimal.Decimal `json:"leader_price"`
	PlannedValue decimal.Decimal `json:"planned_value"`
	CopiedValue  decimal.Decimal `json:"copied_value"`
	Quantity     decimal.Decimal `json:"quantity"`
	Side         string          `json:"side"`
	Outcome      string          `json:"outcome"`

	// DiffPct is the signed deviation between planned and copied value,
	// positive when the executed size exceeded the plan.
	DiffPct         decimal.Decimal `json:"diff_pct"`
	EstimatedFeeUSD decimal.Decimal `json:"estimated_fee_usd"`

	Status    MovementStatus  `json:"status"`
	PnL       decimal.Decimal `json:"pnl"`
	CreatedAt time.Time       `json:"created_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// Open reports whether the movement still contributes to exposure.
func (m Movement) Open() bool {
	return m.Status == StatusRecorded
}

// PnLAfterFees is the realized result net of the estimated round-trip fee.
func (m Movement) PnLAfterFees() decimal.Decimal {
	return m.PnL.Sub(m.EstimatedFeeUSD)
}

// DailyPnL is one calendar day of realized results.
type DailyPnL struct {
	Day string          `json:"day"`
	PnL decimal.Decimal `json:"pnl"`
}
