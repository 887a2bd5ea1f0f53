package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/api"
	"polymarket-copytrader/config"
	"polymarket-copytrader/models"
	"polymarket-copytrader/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testProfile() *config.Profile {
	return &config.Profile{
		LeaderAddress:       "0x1111111111111111111111111111111111111111",
		AllocatedFunds:      dec("1000"),
		MaxTradePct:         dec("5"),
		MaxTotalExposurePct: dec("70"),
		MinCopyUSD:          dec("1"),
		PollIntervalMS:      1000,
		RiskLevel:           config.RiskBalanced,
	}
}

func testService(t *testing.T, mock *api.MockClient) *Service {
	t.Helper()
	if mock == nil {
		mock = &api.MockClient{Value: dec("25000")}
	}
	return NewService(config.Defaults(), mock, storage.NewMemory(), testProfile())
}

func TestRecordProportionalSizing(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	row, plan, err := svc.Record(ctx, RecordInput{
		MarketID:    "will-it-rain",
		LeaderValue: dec("100"),
		LeaderPrice: dec("0.50"),
		Side:        "BUY",
		Outcome:     "Yes",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !plan.Allowed() {
		t.Fatalf("plan rejected: %s", plan.Reason)
	}
	// 1000 * 100 / 25000 = 4
	if !row.CopiedValue.Equal(dec("4")) {
		t.Errorf("copied = %s, want 4", row.CopiedValue)
	}
	if !row.Quantity.Equal(dec("8")) {
		t.Errorf("quantity = %s, want 8", row.Quantity)
	}
	if row.MovementID == "" {
		t.Error("expected a generated movement id")
	}
	if row.Status != models.StatusRecorded {
		t.Errorf("status = %s, want recorded", row.Status)
	}
	if !row.DiffPct.IsZero() {
		t.Errorf("diff_pct = %s, want 0 when fill matches plan", row.DiffPct)
	}
}

func TestRecordRejectionNotPersisted(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	// 1000 * 5 / 25000 = 0.2, under the 1 USD minimum.
	_, plan, err := svc.Record(ctx, RecordInput{
		MarketID:    "tiny",
		LeaderValue: dec("5"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if plan.Allowed() {
		t.Fatal("expected a rejection")
	}
	movements, err := svc.Movements(ctx)
	if err != nil {
		t.Fatalf("Movements: %v", err)
	}
	if len(movements) != 0 {
		t.Errorf("rejected movement reached the ledger: %d rows", len(movements))
	}
}

func TestRecordFillDeviation(t *testing.T) {
	svc := testService(t, nil)

	row, _, err := svc.Record(context.Background(), RecordInput{
		MovementID:  "mv-1",
		MarketID:    "mkt",
		LeaderValue: dec("100"),
		CopiedValue: dec("5"), // plan is 4, fill came in at 5
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !row.PlannedValue.Equal(dec("4")) {
		t.Errorf("planned = %s, want 4", row.PlannedValue)
	}
	if !row.DiffPct.Equal(dec("25")) {
		t.Errorf("diff_pct = %s, want 25", row.DiffPct)
	}
}

func TestRecordFastMarketFee(t *testing.T) {
	svc := testService(t, nil)

	row, _, err := svc.Record(context.Background(), RecordInput{
		MarketID:    "btc-updown-5m-1756500000",
		LeaderValue: dec("2500"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Proportional 100 caps to 50, 70 bps of 50 is 0.35.
	if !row.EstimatedFeeUSD.Equal(dec("0.35")) {
		t.Errorf("fee = %s, want 0.35", row.EstimatedFeeUSD)
	}
}

func TestSettleAndDashboard(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	var pushed []models.Movement
	svc.Subscribe(func(m models.Movement) { pushed = append(pushed, m) })

	a, _, err := svc.Record(ctx, RecordInput{MovementID: "a", MarketID: "m1", LeaderValue: dec("100")})
	if err != nil {
		t.Fatalf("Record a: %v", err)
	}
	if _, _, err := svc.Record(ctx, RecordInput{MovementID: "b", MarketID: "m2", LeaderValue: dec("200")}); err != nil {
		t.Fatalf("Record b: %v", err)
	}

	day1 := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	settled, err := svc.Settle(ctx, a.MovementID, dec("1.5"), day1)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.Seq <= a.Seq {
		t.Errorf("settlement row seq = %d, want > %d", settled.Seq, a.Seq)
	}

	d, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.OpenCount != 1 || d.SettledCount != 1 {
		t.Errorf("open = %d settled = %d, want 1 and 1", d.OpenCount, d.SettledCount)
	}
	if !d.Account.Exposure.Equal(dec("8")) {
		t.Errorf("exposure = %s, want 8", d.Account.Exposure)
	}
	if !d.Account.Equity.Equal(dec("1001.5")) {
		t.Errorf("equity = %s, want 1001.5", d.Account.Equity)
	}
	if !d.Account.Available.Equal(dec("993.5")) {
		t.Errorf("available = %s, want 993.5", d.Account.Available)
	}
	if len(d.Daily) != 1 || d.Daily[0].Day != "2026-08-29" || !d.Daily[0].PnL.Equal(dec("1.5")) {
		t.Errorf("daily = %+v, want one 2026-08-29 entry of 1.5", d.Daily)
	}
	if len(pushed) != 3 {
		t.Errorf("subscriber saw %d rows, want 3", len(pushed))
	}
}

func TestDashboardFeesNetIntoEquityOnly(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	// Proportional 100 caps to 50; the fast-market fee is 0.35.
	row, _, err := svc.Record(ctx, RecordInput{
		MovementID:  "fast",
		MarketID:    "btc-updown-5m-1756500000",
		LeaderValue: dec("2500"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Settle(ctx, row.MovementID, dec("5"), at); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	d, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(d.Daily) != 1 || !d.Daily[0].PnL.Equal(dec("5")) {
		t.Errorf("daily = %+v, want one raw entry of 5", d.Daily)
	}
	if !d.Cumulative[0].PnL.Equal(dec("5")) {
		t.Errorf("cumulative = %s, want 5", d.Cumulative[0].PnL)
	}
	if !d.Account.Equity.Equal(dec("1004.65")) {
		t.Errorf("equity = %s, want 1004.65", d.Account.Equity)
	}
	if !d.Account.FeesPaid.Equal(dec("0.35")) {
		t.Errorf("fees = %s, want 0.35", d.Account.FeesPaid)
	}
	if !d.Account.RealizedPnL.Equal(dec("5")) {
		t.Errorf("realized = %s, want 5", d.Account.RealizedPnL)
	}
}

func TestDashboardCumulative(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	days := []struct {
		id  string
		pnl string
		at  time.Time
	}{
		{"d1", "2", time.Date(2026, 8, 27, 1, 0, 0, 0, time.UTC)},
		{"d2", "-5", time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC)},
		{"d3", "1", time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)},
	}
	for _, c := range days {
		if _, _, err := svc.Record(ctx, RecordInput{MovementID: c.id, MarketID: "m", LeaderValue: dec("100")}); err != nil {
			t.Fatalf("Record %s: %v", c.id, err)
		}
		if _, err := svc.Settle(ctx, c.id, dec(c.pnl), c.at); err != nil {
			t.Fatalf("Settle %s: %v", c.id, err)
		}
	}

	d, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(d.Cumulative) != 2 {
		t.Fatalf("cumulative has %d days, want 2", len(d.Cumulative))
	}
	if !d.Cumulative[0].PnL.Equal(dec("2")) || !d.Cumulative[1].PnL.Equal(dec("-2")) {
		t.Errorf("cumulative = %+v, want 2 then -2", d.Cumulative)
	}
	if !d.Daily[1].PnL.Equal(dec("-4")) {
		t.Errorf("day two pnl = %s, want -4", d.Daily[1].PnL)
	}
}

func TestNotConfigured(t *testing.T) {
	svc := NewService(config.Defaults(), &api.MockClient{}, nil, nil)
	if _, _, err := svc.Record(context.Background(), RecordInput{LeaderValue: dec("1")}); err != config.ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := svc.Dashboard(context.Background()); err != config.ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestIsFastMarket(t *testing.T) {
	cases := []struct {
		slug string
		want bool
	}{
		{"bitcoin-updown-5m-1756500000", true},
		{"eth-updown-15m-1756501234", true},
		{"will-it-rain-in-nyc", false},
		{"updown-hourly", false},
	}
	for _, c := range cases {
		if got := IsFastMarket(c.slug); got != c.want {
			t.Errorf("IsFastMarket(%q) = %v, want %v", c.slug, got, c.want)
		}
	}
}
