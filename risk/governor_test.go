package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polymarket-copytrader/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testPolicy() Policy {
	return Policy{
		AllocatedFunds:      d("1000"),
		MaxTradePct:         d("5"),
		MaxTotalExposurePct: d("70"),
		MinCopyUSD:          d("1"),
	}
}

func TestPlanProportionalSizing(t *testing.T) {
	res, err := Plan(testPolicy(), decimal.Zero, d("25000"), d("100"))
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.True(t, res.CappedSize.Equal(d("4")), "capped = %s", res.CappedSize)
	assert.True(t, res.ProportionalSize.Equal(d("4")))
	assert.Equal(t, ReasonOK, res.Reason)
}

func TestPlanCappedByMaxTradePct(t *testing.T) {
	p := testPolicy()
	p.MaxTotalExposurePct = d("100")
	res, err := Plan(p, decimal.Zero, d("1000"), d("200"))
	require.NoError(t, err)
	assert.True(t, res.CappedSize.Equal(d("50")), "capped = %s", res.CappedSize)
	assert.Equal(t, ReasonTradeCapped, res.Reason)
}

func TestPlanClampedToExposureHeadroom(t *testing.T) {
	p := testPolicy()
	p.MaxTradePct = d("50")
	// 69% already deployed, headroom is 10.
	res, err := Plan(p, d("690"), d("1000"), d("20"))
	require.NoError(t, err)
	assert.True(t, res.CappedSize.Equal(d("10")), "capped = %s", res.CappedSize)
	assert.True(t, res.AvailableExposure.Equal(d("10")))
	assert.Equal(t, ReasonExposureCapped, res.Reason)
}

func TestPlanRejectsBelowMinimum(t *testing.T) {
	res, err := Plan(testPolicy(), decimal.Zero, d("25000"), d("12.5"))
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, RejectBelowMinimum, res.Rejection)
	assert.True(t, res.CappedSize.IsZero())
}

func TestPlanRejectsWhenHeadroomBelowMinimum(t *testing.T) {
	res, err := Plan(testPolicy(), d("699.5"), d("1000"), d("100"))
	require.NoError(t, err)
	assert.Equal(t, RejectExposureCapReached, res.Rejection)
	assert.Equal(t, ReasonNoExposure, res.Reason)
	assert.True(t, res.CappedSize.IsZero())
}

func TestPlanFailsClosedOnInvalidInput(t *testing.T) {
	cases := []struct {
		name      string
		positions string
		movement  string
	}{
		{"zero positions value", "0", "100"},
		{"negative positions value", "-5", "100"},
		{"negative movement value", "1000", "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(testPolicy(), decimal.Zero, d(tc.positions), d(tc.movement))
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidInput))
		})
	}
}

func TestPlanNeverExceedsPerTradeCap(t *testing.T) {
	p := testPolicy()
	cap := p.AllocatedFunds.Mul(p.MaxTradePct).Div(decimal.NewFromInt(100))
	for _, mv := range []string{"1", "50", "500", "5000", "100000"} {
		res, err := Plan(p, decimal.Zero, d("1000"), d(mv))
		require.NoError(t, err)
		if res.Allowed() {
			assert.True(t, res.CappedSize.LessThanOrEqual(cap),
				"movement %s: capped %s exceeds %s", mv, res.CappedSize, cap)
		}
	}
}
