package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FastMarketFeeBPS is the taker fee charged on the short-interval up/down
// markets. Regular markets trade fee-free.
const FastMarketFeeBPS = 70

var fastMarketMarkers = []string{"-updown-5m", "-updown-15m"}

var bpsDivisor = decimal.NewFromInt(10000)

// IsFastMarket reports whether a market slug belongs to a fee-charging
// short-interval market.
func IsFastMarket(slug string) bool {
	s := strings.ToLower(slug)
	for _, marker := range fastMarketMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// EstimatedFee returns the fee impact in USD for a copied notional on the
// given market. Zero for regular markets.
func EstimatedFee(slug string, notional decimal.Decimal) decimal.Decimal {
	if !IsFastMarket(slug) {
		return decimal.Zero
	}
	return notional.Mul(decimal.NewFromInt(FastMarketFeeBPS)).Div(bpsDivisor)
}
