package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"polymarket-copytrader/models"
)

// PostgresMirror keeps a best-effort relational copy of the ledger for ad-hoc
// querying. The JSONL file stays the source of truth; mirror failures are
// reported to the caller but never block an append.
type PostgresMirror struct {
	pool *pgxpool.Pool
}

const mirrorSchema = `
CREATE TABLE IF NOT EXISTS copy_movements (
    seq               BIGINT PRIMARY KEY,
    movement_id       TEXT NOT NULL,
    market_id         TEXT NOT NULL,
    leader_value      NUMERIC NOT NULL,
    leader_price      NUMERIC NOT NULL DEFAULT 0,
    planned_value     NUMERIC NOT NULL DEFAULT 0,
    copied_value      NUMERIC NOT NULL,
    quantity          NUMERIC NOT NULL DEFAULT 0,
    side              TEXT NOT NULL DEFAULT '',
    outcome           TEXT NOT NULL DEFAULT '',
    diff_pct          NUMERIC NOT NULL DEFAULT 0,
    estimated_fee_usd NUMERIC NOT NULL DEFAULT 0,
    status            TEXT NOT NULL,
    pnl               NUMERIC NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL,
    settled_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_copy_movements_movement_id ON copy_movements (movement_id);
`

// NewPostgresMirror connects to databaseURL and ensures the mirror table
// exists.
func NewPostgresMirror(ctx context.Context, databaseURL string) (*PostgresMirror, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, mirrorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: init mirror schema: %w", err)
	}
	return &PostgresMirror{pool: pool}, nil
}

// Close releases the connection pool.
func (m *PostgresMirror) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}

// MirrorRow inserts one ledger row. Conflicting sequence numbers are left
// untouched, matching the ledger's never-rewrite discipline.
func (m *PostgresMirror) MirrorRow(ctx context.Context, row models.Movement) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.pool.Exec(ctx, `
        INSERT INTO copy_movements (
            seq, movement_id, market_id, leader_value, leader_price,
            planned_value, copied_value, quantity, side, outcome,
            diff_pct, estimated_fee_usd, status, pnl, created_at, settled_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (seq) DO NOTHING`,
		row.Seq, row.MovementID, row.MarketID, row.LeaderValue, row.LeaderPrice,
		row.PlannedValue, row.CopiedValue, row.Quantity, row.Side, row.Outcome,
		row.DiffPct, row.EstimatedFeeUSD, string(row.Status), row.PnL,
		row.CreatedAt, row.SettledAt)
	if err != nil {
		return fmt.Errorf("storage: mirror row %d: %w", row.Seq, err)
	}
	return nil
}
