package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

// MemoryLedger is an in-memory Ledger with the same semantics as FileLedger,
// used by tests and ephemeral runs.
type MemoryLedger struct {
	mu       sync.RWMutex
	rows     []models.Movement
	merged   map[string]models.Movement
	order    []string
	lastSeq  int64
	exposure decimal.Decimal
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{
		merged:   make(map[string]models.Movement),
		exposure: decimal.Zero,
	}
}

func (l *MemoryLedger) Close() error { return nil }

func (l *MemoryLedger) Append(ctx context.Context, m models.Movement) (models.Movement, error) {
	if m.MovementID == "" {
		return models.Movement{}, fmt.Errorf("%w: empty movement id", models.ErrInvalidInput)
	}
	if m.Status != models.StatusRecorded {
		return models.Movement{}, fmt.Errorf("%w: only recorded movements are appended, got %q",
			models.ErrInvalidTransition, m.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.merged[m.MovementID]; ok {
		if prev.Status == models.StatusSettled {
			return models.Movement{}, fmt.Errorf("%w: movement %s is settled",
				models.ErrInvalidTransition, m.MovementID)
		}
		return models.Movement{}, fmt.Errorf("%w: %s", models.ErrDuplicateID, m.MovementID)
	}

	l.lastSeq++
	m.Seq = l.lastSeq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	l.rows = append(l.rows, m)
	l.order = append(l.order, m.MovementID)
	l.merged[m.MovementID] = m
	l.exposure = l.exposure.Add(m.CopiedValue)
	return m, nil
}

func (l *MemoryLedger) Settle(ctx context.Context, movementID string, pnl decimal.Decimal, settledAt time.Time) (models.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.merged[movementID]
	if !ok {
		return models.Movement{}, fmt.Errorf("%w: %s", models.ErrNotFound, movementID)
	}
	switch prev.Status {
	case models.StatusSettled:
		return models.Movement{}, fmt.Errorf("%w: %s", models.ErrAlreadySettled, movementID)
	case models.StatusRecorded:
	default:
		return models.Movement{}, fmt.Errorf("%w: %s is %q", models.ErrNotRecorded, movementID, prev.Status)
	}

	l.lastSeq++
	row := prev
	row.Seq = l.lastSeq
	row.Status = models.StatusSettled
	row.PnL = pnl
	at := settledAt.UTC()
	row.SettledAt = &at
	l.rows = append(l.rows, row)

	merged := row
	merged.Seq = prev.Seq
	l.merged[movementID] = merged
	l.exposure = l.exposure.Sub(prev.CopiedValue)
	return row, nil
}

func (l *MemoryLedger) Get(ctx context.Context, movementID string) (*models.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.merged[movementID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, movementID)
	}
	return &m, nil
}

func (l *MemoryLedger) Movements(ctx context.Context) ([]models.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Movement, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.merged[id])
	}
	return out, nil
}

func (l *MemoryLedger) UpdatesSince(ctx context.Context, since int64, limit int) ([]models.Movement, int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Movement
	for _, row := range l.rows {
		if row.Seq <= since {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, l.lastSeq, nil
}

func (l *MemoryLedger) LastSeq(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeq, nil
}

func (l *MemoryLedger) Exposure(ctx context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.exposure, nil
}
