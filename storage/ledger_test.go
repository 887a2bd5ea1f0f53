package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func recorded(id, market, copied string) models.Movement {
	return models.Movement{
		MovementID:  id,
		MarketID:    market,
		LeaderValue: d("100"),
		CopiedValue: d(copied),
		Status:      models.StatusRecorded,
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openTestLedger(t *testing.T) (*FileLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestAppendAssignsSequenceAndExposure(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	m1, err := l.Append(ctx, recorded("a", "m1", "10"))
	if err != nil {
		t.Fatalf("append a: %v", err)
	}
	m2, err := l.Append(ctx, recorded("b", "m2", "5"))
	if err != nil {
		t.Fatalf("append b: %v", err)
	}
	if m1.Seq != 1 || m2.Seq != 2 {
		t.Errorf("seq = %d, %d, want 1, 2", m1.Seq, m2.Seq)
	}

	exp, _ := l.Exposure(ctx)
	if !exp.Equal(d("15")) {
		t.Errorf("exposure = %s, want 15", exp)
	}
	last, _ := l.LastSeq(ctx)
	if last != 2 {
		t.Errorf("last seq = %d, want 2", last)
	}
}

func TestDuplicateIDLeavesLedgerUnchanged(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, recorded("a", "m1", "10")); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := l.Append(ctx, recorded("a", "m1", "99"))
	if !errors.Is(err, models.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}

	rows, latest, _ := l.UpdatesSince(ctx, 0, 0)
	if len(rows) != 1 || latest != 1 {
		t.Errorf("rows = %d latest = %d, want 1 and 1", len(rows), latest)
	}
	exp, _ := l.Exposure(ctx)
	if !exp.Equal(d("10")) {
		t.Errorf("exposure = %s, want 10", exp)
	}
}

func TestSettleLifecycle(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, recorded("a", "m1", "10")); err != nil {
		t.Fatalf("append: %v", err)
	}

	at := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	settled, err := l.Settle(ctx, "a", d("2.5"), at)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != models.StatusSettled || !settled.PnL.Equal(d("2.5")) {
		t.Errorf("settled = %+v", settled)
	}

	exp, _ := l.Exposure(ctx)
	if !exp.IsZero() {
		t.Errorf("exposure after settle = %s, want 0", exp)
	}

	// Second settle reports AlreadySettled and keeps the first PnL.
	if _, err := l.Settle(ctx, "a", d("-99"), at); !errors.Is(err, models.ErrAlreadySettled) {
		t.Fatalf("second settle err = %v, want ErrAlreadySettled", err)
	}
	got, _ := l.Get(ctx, "a")
	if !got.PnL.Equal(d("2.5")) {
		t.Errorf("pnl after re-settle = %s, want 2.5", got.PnL)
	}

	// Recording over a settled movement is an invalid transition.
	if _, err := l.Append(ctx, recorded("a", "m1", "10")); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("append over settled err = %v, want ErrInvalidTransition", err)
	}
}

func TestSettleErrors(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	if _, err := l.Settle(ctx, "missing", d("1"), time.Now()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatesSince(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := l.Append(ctx, recorded(id, "m", "1")); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if _, err := l.Settle(ctx, "a", d("0.5"), time.Now()); err != nil {
		t.Fatalf("settle: %v", err)
	}

	rows, latest, _ := l.UpdatesSince(ctx, 2, 0)
	if latest != 4 {
		t.Errorf("latest = %d, want 4", latest)
	}
	if len(rows) != 2 || rows[0].Seq != 3 || rows[1].Seq != 4 {
		t.Fatalf("rows = %+v, want seqs 3,4", rows)
	}
	if rows[1].Status != models.StatusSettled || rows[1].MovementID != "a" {
		t.Errorf("settlement row = %+v", rows[1])
	}

	// Past the head: empty, not an error.
	rows, _, err := l.UpdatesSince(ctx, 100, 0)
	if err != nil || len(rows) != 0 {
		t.Errorf("rows = %v err = %v, want empty and nil", rows, err)
	}
}

func TestReplayRebuildsStateAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	l, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(ctx, recorded("a", "m1", "10"))
	l.Append(ctx, recorded("b", "m2", "4"))
	l.Settle(ctx, "a", d("1"), time.Now())
	l.Close()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	exp, _ := reopened.Exposure(ctx)
	if !exp.Equal(d("4")) {
		t.Errorf("exposure after replay = %s, want 4", exp)
	}
	got, err := reopened.Get(ctx, "a")
	if err != nil || got.Status != models.StatusSettled {
		t.Errorf("movement a after replay = %+v err = %v", got, err)
	}
	_, latest, _ := reopened.UpdatesSince(ctx, 0, 0)
	if latest != 3 {
		t.Errorf("latest seq after replay = %d, want 3", latest)
	}
}

func TestReplayTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	l, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(ctx, recorded("a", "m1", "10"))
	l.Close()

	// Simulate an interrupted write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	f.WriteString(`{"seq":2,"movement_id":"b","copied`)
	f.Close()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen with torn tail: %v", err)
	}
	defer reopened.Close()

	rows, latest, _ := reopened.UpdatesSince(ctx, 0, 0)
	if len(rows) != 1 || latest != 1 {
		t.Errorf("rows = %d latest = %d, want 1 and 1", len(rows), latest)
	}

	// The torn bytes are gone and the next append lands on a clean line.
	if _, err := reopened.Append(ctx, recorded("c", "m3", "2")); err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
	raw, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("file has %d lines, want 2: %q", len(lines), string(raw))
	}
}

func TestReplayDropsLineWithoutNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	l, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(ctx, recorded("a", "m1", "10"))
	l.Close()

	// A write cut off right at the object boundary leaves a parseable line
	// with no newline. It must still count as torn, or the next append
	// glues onto it and a later replay throws both rows away.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-1); err != nil {
		t.Fatalf("strip newline: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, _, _ := reopened.UpdatesSince(ctx, 0, 0)
	if len(rows) != 0 {
		t.Fatalf("rows after reopen = %d, want 0", len(rows))
	}
	if _, err := reopened.Append(ctx, recorded("b", "m2", "4")); err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
	reopened.Close()

	final, err := OpenFile(path)
	if err != nil {
		t.Fatalf("final reopen: %v", err)
	}
	defer final.Close()
	rows, latest, _ := final.UpdatesSince(ctx, 0, 0)
	if len(rows) != 1 || latest != 1 {
		t.Fatalf("rows = %d latest = %d, want 1 and 1", len(rows), latest)
	}
	if rows[0].MovementID != "b" {
		t.Errorf("surviving row = %q, want b", rows[0].MovementID)
	}
	raw, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(raw), "\n") {
		t.Errorf("file does not end with a newline: %q", string(raw))
	}
}

func TestMemoryLedgerMatchesFileSemantics(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	if _, err := l.Append(ctx, recorded("a", "m1", "10")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.Append(ctx, recorded("a", "m1", "10")); !errors.Is(err, models.ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if _, err := l.Settle(ctx, "a", d("1"), time.Now()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := l.Settle(ctx, "a", d("2"), time.Now()); !errors.Is(err, models.ErrAlreadySettled) {
		t.Errorf("err = %v, want ErrAlreadySettled", err)
	}
	exp, _ := l.Exposure(ctx)
	if !exp.IsZero() {
		t.Errorf("exposure = %s, want 0", exp)
	}
}
