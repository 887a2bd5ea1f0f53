package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

// RecentRowsLimit caps the movement list embedded in a dashboard snapshot.
const RecentRowsLimit = 300

// Account summarizes the follower's funds derived from the ledger.
type Account struct {
	AllocatedFunds decimal.Decimal `json:"allocated_funds"`
	Equity         decimal.Decimal `json:"equity"`
	Exposure       decimal.Decimal `json:"exposure"`
	Available      decimal.Decimal `json:"available"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	FeesPaid       decimal.Decimal `json:"fees_paid"`
}

// Dashboard is the aggregate view served to the CLI and the web UI.
type Dashboard struct {
	Account       Account           `json:"account"`
	OpenCount     int               `json:"open_count"`
	SettledCount  int               `json:"settled_count"`
	TotalCount    int               `json:"total_count"`
	Daily         []models.DailyPnL `json:"daily_pnl"`
	Cumulative    []models.DailyPnL `json:"cumulative_pnl"`
	Recent        []models.Movement `json:"recent"`
	LastUpdatedAt time.Time         `json:"last_updated_at"`
}

// Dashboard recomputes the aggregate view from the merged ledger state.
// Everything here is derived; the ledger rows stay authoritative.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	profile, ledger, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	movements, err := ledger.Movements(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Account: Account{
			AllocatedFunds: profile.AllocatedFunds,
			Equity:         profile.AllocatedFunds,
		},
		TotalCount:    len(movements),
		LastUpdatedAt: time.Now().UTC(),
	}

	byDay := map[string]decimal.Decimal{}
	for _, m := range movements {
		switch m.Status {
		case models.StatusRecorded:
			d.OpenCount++
			d.Account.Exposure = d.Account.Exposure.Add(m.CopiedValue)
		case models.StatusSettled:
			d.SettledCount++
			d.Account.RealizedPnL = d.Account.RealizedPnL.Add(m.PnL)
			d.Account.FeesPaid = d.Account.FeesPaid.Add(m.EstimatedFeeUSD)
			d.Account.Equity = d.Account.Equity.Add(m.PnLAfterFees())

			// The series tracks raw results; fees net into equity only.
			day := m.CreatedAt.UTC().Format("2006-01-02")
			if m.SettledAt != nil {
				day = m.SettledAt.UTC().Format("2006-01-02")
			}
			byDay[day] = byDay[day].Add(m.PnL)
		}
	}

	d.Account.Available = d.Account.Equity.Sub(d.Account.Exposure)
	if d.Account.Available.Sign() < 0 {
		d.Account.Available = decimal.Zero
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	running := decimal.Zero
	for _, day := range days {
		running = running.Add(byDay[day])
		d.Daily = append(d.Daily, models.DailyPnL{Day: day, PnL: byDay[day]})
		d.Cumulative = append(d.Cumulative, models.DailyPnL{Day: day, PnL: running})
	}

	recent := movements
	if len(recent) > RecentRowsLimit {
		recent = recent[len(recent)-RecentRowsLimit:]
	}
	// Newest first for display.
	d.Recent = make([]models.Movement, len(recent))
	for i, m := range recent {
		d.Recent[len(recent)-1-i] = m
	}
	return d, nil
}
