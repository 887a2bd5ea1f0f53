package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

// FileLedger persists movements as one JSON object per line. Appends go
// through a single writer; readers work off an in-memory replica rebuilt
// from the file on open, so poller writes never block server reads beyond
// the brief critical section of an append.
type FileLedger struct {
	path string
	f    *os.File

	mu       sync.RWMutex
	rows     []models.Movement
	merged   map[string]models.Movement
	order    []string
	lastSeq  int64
	exposure decimal.Decimal

	// Per-movement locks so a concurrent settle and duplicate record for the
	// same id are mutually exclusive without serializing unrelated ids.
	idLocks sync.Map
}

// OpenFile opens (creating if needed) the ledger at path and replays it. A
// torn trailing line from an interrupted write is truncated away, never
// fatal.
func OpenFile(path string) (*FileLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", filepath.Dir(path), err)
	}

	l := &FileLedger{
		path:     path,
		merged:   make(map[string]models.Movement),
		exposure: decimal.Zero,
	}
	if err := l.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open ledger %s: %w", path, err)
	}
	l.f = f
	return l, nil
}

// replay rebuilds the in-memory state from disk and truncates a torn tail.
func (l *FileLedger) replay() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	var validEnd int64
	r := bufio.NewReader(f)
	for {
		line, rerr := r.ReadBytes('\n')
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("storage: scan ledger: %w", rerr)
		}
		if rerr == io.EOF {
			// A trailing line without its newline is an interrupted write
			// even when it happens to parse: drop it so the next append
			// starts on a clean line.
			if len(line) > 0 {
				log.Warn().Str("path", l.path).Int64("offset", validEnd).
					Msg("ledger has a partial trailing line, truncating")
			}
			break
		}
		var row models.Movement
		if err := json.Unmarshal(line, &row); err != nil {
			// Interrupted write: drop everything from here on.
			log.Warn().Str("path", l.path).Int64("offset", validEnd).
				Msg("ledger has a partial trailing line, truncating")
			break
		}
		l.apply(row)
		validEnd += int64(len(line))
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > validEnd {
		if err := os.Truncate(l.path, validEnd); err != nil {
			return fmt.Errorf("storage: truncate torn tail: %w", err)
		}
	}
	return nil
}

// apply folds one row into the replica. Caller holds the write lock (or is
// the single-threaded replay).
func (l *FileLedger) apply(row models.Movement) {
	if row.Seq > l.lastSeq {
		l.lastSeq = row.Seq
	}
	l.rows = append(l.rows, row)

	prev, seen := l.merged[row.MovementID]
	if !seen {
		l.order = append(l.order, row.MovementID)
	} else {
		// Later rows only ever carry the terminal state; keep the original
		// sequence number so the merged view stays in append order.
		row.Seq = prev.Seq
	}
	l.merged[row.MovementID] = row

	switch {
	case !seen && row.Status == models.StatusRecorded:
		l.exposure = l.exposure.Add(row.CopiedValue)
	case seen && prev.Status == models.StatusRecorded && row.Status == models.StatusSettled:
		l.exposure = l.exposure.Sub(prev.CopiedValue)
	}
}

func (l *FileLedger) lockID(id string) *sync.Mutex {
	v, _ := l.idLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Close releases the underlying file handle.
func (l *FileLedger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

func (l *FileLedger) Append(ctx context.Context, m models.Movement) (models.Movement, error) {
	if m.MovementID == "" {
		return models.Movement{}, fmt.Errorf("%w: empty movement id", models.ErrInvalidInput)
	}
	if m.Status != models.StatusRecorded {
		return models.Movement{}, fmt.Errorf("%w: only recorded movements are appended, got %q",
			models.ErrInvalidTransition, m.Status)
	}

	idMu := l.lockID(m.MovementID)
	idMu.Lock()
	defer idMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.merged[m.MovementID]; ok {
		if prev.Status == models.StatusSettled {
			return models.Movement{}, fmt.Errorf("%w: movement %s is settled",
				models.ErrInvalidTransition, m.MovementID)
		}
		return models.Movement{}, fmt.Errorf("%w: %s", models.ErrDuplicateID, m.MovementID)
	}

	m.Seq = l.lastSeq + 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := l.writeRow(m); err != nil {
		return models.Movement{}, err
	}
	l.apply(m)
	return m, nil
}

func (l *FileLedger) Settle(ctx context.Context, movementID string, pnl decimal.Decimal, settledAt time.Time) (models.Movement, error) {
	idMu := l.lockID(movementID)
	idMu.Lock()
	defer idMu.Unlock()

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

	row := prev
	row.Seq = l.lastSeq + 1
	row.Status = models.StatusSettled
	row.PnL = pnl
	at := settledAt.UTC()
	row.SettledAt = &at

	if err := l.writeRow(row); err != nil {
		return models.Movement{}, err
	}
	l.apply(row)
	return row, nil
}

// writeRow appends one line. Caller holds the write lock, so the sequence on
// disk matches arrival order.
func (l *FileLedger) writeRow(row models.Movement) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("storage: marshal row: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := l.f.Write(raw); err != nil {
		return fmt.Errorf("storage: append row: %w", err)
	}
	return nil
}

func (l *FileLedger) Get(ctx context.Context, movementID string) (*models.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.merged[movementID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, movementID)
	}
	return &m, nil
}

func (l *FileLedger) Movements(ctx context.Context) ([]models.Movement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Movement, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.merged[id])
	}
	return out, nil
}

func (l *FileLedger) UpdatesSince(ctx context.Context, since int64, limit int) ([]models.Movement, int64, error) {
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

func (l *FileLedger) LastSeq(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeq, nil
}

func (l *FileLedger) Exposure(ctx context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.exposure, nil
}
