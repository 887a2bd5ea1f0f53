// Package risk sizes copied trades. The governor is pure: it never reads the
// ledger or the network, so every decision is reproducible from its inputs.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

// Policy holds the configured risk limits for one copy profile.
type Policy struct {
	AllocatedFunds      decimal.Decimal
	MaxTradePct         decimal.Decimal
	MaxTotalExposurePct decimal.Decimal
	MinCopyUSD          decimal.Decimal
}

// RejectReason identifies a policy rejection. Rejections are decisions, not
// system faults.
type RejectReason string

const (
	RejectBelowMinimum       RejectReason = "BelowMinimum"
	RejectExposureCapReached RejectReason = "ExposureCapReached"
)

// Plan result reason strings, kept stable for operators and the UI.
const (
	ReasonOK             = "ok"
	ReasonBelowMinimum   = "below minimum copy threshold"
	ReasonNoExposure     = "no exposure available"
	ReasonTradeCapped    = "capped by max_trade_pct"
	ReasonExposureCapped = "capped by max_total_exposure_pct"
)

// PlanResult carries both the unclamped proportional size and the final
// capped size so the recorder can log the deviation between them.
type PlanResult struct {
	ProportionalSize  decimal.Decimal `json:"proportional_size"`
	CappedSize        decimal.Decimal `json:"capped_size"`
	AvailableExposure decimal.Decimal `json:"available_funds"`
	Reason            string          `json:"reason"`
	Rejection         RejectReason    `json:"rejection,omitempty"`
}

// Allowed reports whether the plan produced a placeable size.
func (r PlanResult) Allowed() bool {
	return r.Rejection == ""
}

var hundred = decimal.NewFromInt(100)

// Plan computes the follower size for one leader movement.
//
// The follower mirrors the movement in proportion to the leader's total
// position value, so sizing stays stable as the follower's own headroom
// shrinks. The proportional size is clamped first to the per-trade cap, then
// to the remaining exposure headroom. A non-positive leader positions value
// or a negative movement value fails closed with ErrInvalidInput.
func Plan(p Policy, currentExposure, leaderPositionsValue, leaderMovementValue decimal.Decimal) (PlanResult, error) {
	if leaderPositionsValue.Sign() <= 0 {
		return PlanResult{}, fmt.Errorf("%w: leader positions value must be > 0, got %s",
			models.ErrInvalidInput, leaderPositionsValue)
	}
	if leaderMovementValue.Sign() < 0 {
		return PlanResult{}, fmt.Errorf("%w: leader movement value cannot be negative, got %s",
			models.ErrInvalidInput, leaderMovementValue)
	}

	proportional := p.AllocatedFunds.Mul(leaderMovementValue).Div(leaderPositionsValue)
	maxTrade := p.AllocatedFunds.Mul(p.MaxTradePct).Div(hundred)
	maxExposure := p.AllocatedFunds.Mul(p.MaxTotalExposurePct).Div(hundred)

	headroom := maxExposure.Sub(currentExposure)
	if headroom.Sign() < 0 {
		headroom = decimal.Zero
	}

	res := PlanResult{
		ProportionalSize:  proportional,
		AvailableExposure: headroom,
	}

	if headroom.LessThan(p.MinCopyUSD) {
		res.Rejection = RejectExposureCapReached
		res.Reason = ReasonNoExposure
		return res, nil
	}

	capped := decimal.Min(proportional, maxTrade, headroom)
	if capped.LessThan(p.MinCopyUSD) {
		res.Rejection = RejectBelowMinimum
		res.Reason = ReasonBelowMinimum
		return res, nil
	}

	res.CappedSize = capped
	switch {
	case capped.LessThan(decimal.Min(proportional, maxTrade)):
		res.Reason = ReasonExposureCapped
	case proportional.GreaterThan(maxTrade):
		res.Reason = ReasonTradeCapped
	default:
		res.Reason = ReasonOK
	}
	return res, nil
}
