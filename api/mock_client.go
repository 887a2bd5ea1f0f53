package api

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MockClient is a scriptable DataClient for tests and simulation.
type MockClient struct {
	mu sync.Mutex

	Value  decimal.Decimal
	Trades []Trade
	Closed []ClosedPosition

	// Err, when set, is returned by every call until cleared.
	Err error

	ValueCalls  int
	TradesCalls int
	ClosedCalls int
}

var _ DataClient = (*MockClient)(nil)

func (m *MockClient) PositionsValue(ctx context.Context, leader string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValueCalls++
	if m.Err != nil {
		return decimal.Zero, m.Err
	}
	return m.Value, nil
}

func (m *MockClient) RecentTrades(ctx context.Context, leader string, limit int) ([]Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TradesCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Trades) > limit {
		return append([]Trade(nil), m.Trades[:limit]...), nil
	}
	return append([]Trade(nil), m.Trades...), nil
}

func (m *MockClient) ClosedPositions(ctx context.Context, leader string, limit int) ([]ClosedPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClosedCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Closed) > limit {
		return append([]ClosedPosition(nil), m.Closed[:limit]...), nil
	}
	return append([]ClosedPosition(nil), m.Closed...), nil
}

// SetErr swaps the scripted error, returning the previous one.
func (m *MockClient) SetErr(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.Err
	m.Err = err
	return prev
}
