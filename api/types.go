package api

import "github.com/shopspring/decimal"

// Trade is one leader trade reported by the data API.
type Trade struct {
	TransactionHash string          `json:"transactionHash"`
	Slug            string          `json:"slug"`
	Title           string          `json:"title"`
	Side            string          `json:"side"`
	Outcome         string          `json:"outcome"`
	Asset           string          `json:"asset"`
	Price           decimal.Decimal `json:"price"`
	Size            decimal.Decimal `json:"size"`
	Timestamp       int64           `json:"timestamp"`
}

// Notional is the USD value of the trade.
func (t Trade) Notional() decimal.Decimal {
	return t.Size.Mul(t.Price)
}

// ClosedPosition is a resolved position of the leader, used to settle open
// copied movements.
type ClosedPosition struct {
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Outcome     string          `json:"outcome"`
	TotalBought decimal.Decimal `json:"totalBought"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	Timestamp   int64           `json:"timestamp"`
}

// userValue mirrors the data API's portfolio value rows.
type userValue struct {
	User  string          `json:"user"`
	Value decimal.Decimal `json:"value"`
}
