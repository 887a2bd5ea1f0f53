package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

// Ledger is the durable append-only movement log. It is the single source of
// truth: the exposure aggregate is derived from it and rebuilt on open. Rows
// are never rewritten; settlement appends a terminal row for the movement.
//
// Operations on distinct movement ids may run concurrently; operations on
// the same id are serialized by the implementation.
type Ledger interface {
	Close() error

	// Append records a movement. The ledger assigns the sequence number.
	// A duplicate id yields models.ErrDuplicateID; appending over a settled
	// movement yields models.ErrInvalidTransition.
	Append(ctx context.Context, m models.Movement) (models.Movement, error)

	// Settle appends the terminal row for a recorded movement. Re-settling
	// yields models.ErrAlreadySettled and leaves the first PnL in place.
	Settle(ctx context.Context, movementID string, pnl decimal.Decimal, settledAt time.Time) (models.Movement, error)

	// Get returns the merged current state of one movement.
	Get(ctx context.Context, movementID string) (*models.Movement, error)

	// Movements returns the merged state of every movement, ordered by first
	// append.
	Movements(ctx context.Context) ([]models.Movement, error)

	// UpdatesSince returns raw rows with seq > since in ascending order,
	// capped at limit, together with the latest sequence number. No new rows
	// is an empty slice, not an error.
	UpdatesSince(ctx context.Context, since int64, limit int) ([]models.Movement, int64, error)

	// LastSeq is the latest sequence number, the cursor a client starts the
	// incremental feed from after taking a full snapshot.
	LastSeq(ctx context.Context) (int64, error)

	// Exposure is the sum of copied values over recorded-but-unsettled
	// movements. Derived, never authoritative.
	Exposure(ctx context.Context) (decimal.Decimal, error)
}

var _ Ledger = (*FileLedger)(nil)
var _ Ledger = (*MemoryLedger)(nil)
