// Package service coordinates the governor, the ledger and the upstream data
// API. Handlers, the poller and the CLI all go through it so the sizing and
// accounting rules live in exactly one place.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"polymarket-copytrader/api"
	"polymarket-copytrader/config"
	"polymarket-copytrader/models"
	"polymarket-copytrader/risk"
	"polymarket-copytrader/storage"
)

// Service handles business logic and coordinates between the API client,
// the ledger and the risk governor.
type Service struct {
	cfg    *config.Config
	client api.DataClient

	mu      sync.RWMutex
	profile *config.Profile
	ledger  storage.Ledger
	mirror  *storage.PostgresMirror

	subMu sync.RWMutex
	subs  []func(models.Movement)
}

// NewService creates a service. The ledger may be nil when no profile has
// been configured yet; Configure opens one.
func NewService(cfg *config.Config, client api.DataClient, ledger storage.Ledger, profile *config.Profile) *Service {
	return &Service{
		cfg:     cfg,
		client:  client,
		ledger:  ledger,
		profile: profile,
	}
}

// SetMirror attaches an optional relational mirror. Mirror writes are best
// effort and never fail a ledger operation.
func (s *Service) SetMirror(m *storage.PostgresMirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// Subscribe registers a callback invoked for every ledger row the service
// appends. Callbacks must not block.
func (s *Service) Subscribe(fn func(models.Movement)) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

func (s *Service) notify(row models.Movement) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subs {
		fn(row)
	}
}

// Profile returns the active profile, or nil when not configured.
func (s *Service) Profile() *config.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Ledger returns the active ledger, or nil when not configured.
func (s *Service) Ledger() storage.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// Configure validates and persists a new profile, then swaps the ledger to
// the file matching the profile's storage mode.
func (s *Service) Configure(ctx context.Context, p *config.Profile) error {
	if err := config.SaveProfile(s.cfg.Data.Dir, p); err != nil {
		return err
	}
	ledger, err := storage.OpenFile(filepath.Join(s.cfg.Data.Dir, p.LedgerFile()))
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.ledger
	s.profile = p
	s.ledger = ledger
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Msg("closing previous ledger")
		}
	}
	log.Info().
		Str("leader", p.LeaderAddress).
		Bool("simulation", p.SimulationMode).
		Msg("profile configured")
	return nil
}

func (s *Service) snapshot() (*config.Profile, storage.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil || s.ledger == nil {
		return nil, nil, config.ErrNotConfigured
	}
	return s.profile, s.ledger, nil
}

// Plan sizes a leader movement against the current exposure without touching
// the ledger. A zero positions value is fetched from the data API.
func (s *Service) Plan(ctx context.Context, movementValue, positionsValue decimal.Decimal) (risk.PlanResult, error) {
	profile, ledger, err := s.snapshot()
	if err != nil {
		return risk.PlanResult{}, err
	}
	if positionsValue.IsZero() {
		positionsValue, err = s.client.PositionsValue(ctx, profile.LeaderAddress)
		if err != nil {
			return risk.PlanResult{}, fmt.Errorf("fetch leader positions value: %w", err)
		}
	}
	exposure, err := ledger.Exposure(ctx)
	if err != nil {
		return risk.PlanResult{}, err
	}
	return risk.Plan(profile.Policy(), exposure, positionsValue, movementValue)
}

// RecordInput describes one leader movement to size and record.
type RecordInput struct {
	MovementID     string
	MarketID       string
	LeaderValue    decimal.Decimal
	LeaderPrice    decimal.Decimal
	PositionsValue decimal.Decimal
	Side           string
	Outcome        string

	// CopiedValue overrides the governor's capped size when the executed
	// fill deviated from the plan. Zero means take the plan as-is.
	CopiedValue decimal.Decimal

	CreatedAt time.Time
}

// Record sizes the movement and, when the governor allows it, appends it to
// the ledger. Rejected movements are returned with the plan result and never
// written. The returned movement is zero-valued on rejection.
func (s *Service) Record(ctx context.Context, in RecordInput) (models.Movement, risk.PlanResult, error) {
	profile, ledger, err := s.snapshot()
	if err != nil {
		return models.Movement{}, risk.PlanResult{}, err
	}

	positions := in.PositionsValue
	if positions.IsZero() {
		positions, err = s.client.PositionsValue(ctx, profile.LeaderAddress)
		if err != nil {
			return models.Movement{}, risk.PlanResult{}, fmt.Errorf("fetch leader positions value: %w", err)
		}
	}
	exposure, err := ledger.Exposure(ctx)
	if err != nil {
		return models.Movement{}, risk.PlanResult{}, err
	}
	plan, err := risk.Plan(profile.Policy(), exposure, positions, in.LeaderValue)
	if err != nil {
		return models.Movement{}, plan, err
	}
	if !plan.Allowed() {
		log.Debug().
			Str("market", in.MarketID).
			Str("reason", plan.Reason).
			Str("leader_value", in.LeaderValue.String()).
			Msg("movement rejected by policy")
		return models.Movement{}, plan, nil
	}

	copied := in.CopiedValue
	if copied.IsZero() {
		copied = plan.CappedSize
	}
	m := models.Movement{
		MovementID:      strings.TrimSpace(in.MovementID),
		MarketID:        in.MarketID,
		LeaderValue:     in.LeaderValue,
		LeaderPrice:     in.LeaderPrice,
		PlannedValue:    plan.CappedSize,
		CopiedValue:     copied,
		Side:            in.Side,
		Outcome:         in.Outcome,
		DiffPct:         diffPct(plan.CappedSize, copied),
		EstimatedFeeUSD: EstimatedFee(in.MarketID, copied),
		Status:          models.StatusRecorded,
		CreatedAt:       in.CreatedAt,
	}
	if m.MovementID == "" {
		m.MovementID = ulid.Make().String()
	}
	if in.LeaderPrice.Sign() > 0 {
		m.Quantity = copied.Div(in.LeaderPrice)
	}

	row, err := ledger.Append(ctx, m)
	if err != nil {
		return models.Movement{}, plan, err
	}
	log.Info().
		Int64("seq", row.Seq).
		Str("movement_id", row.MovementID).
		Str("market", row.MarketID).
		Str("copied", row.CopiedValue.String()).
		Str("reason", plan.Reason).
		Msg("movement recorded")

	s.mirrorRow(ctx, row)
	s.notify(row)
	return row, plan, nil
}

// Settle marks a recorded movement as settled with its realized result.
func (s *Service) Settle(ctx context.Context, movementID string, pnl decimal.Decimal, settledAt time.Time) (models.Movement, error) {
	_, ledger, err := s.snapshot()
	if err != nil {
		return models.Movement{}, err
	}
	row, err := ledger.Settle(ctx, movementID, pnl, settledAt)
	if err != nil {
		return models.Movement{}, err
	}
	log.Info().
		Int64("seq", row.Seq).
		Str("movement_id", row.MovementID).
		Str("pnl", row.PnL.String()).
		Msg("movement settled")

	s.mirrorRow(ctx, row)
	s.notify(row)
	return row, nil
}

// Movements returns the merged state of every movement.
func (s *Service) Movements(ctx context.Context) ([]models.Movement, error) {
	_, ledger, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return ledger.Movements(ctx)
}

// UpdatesSince returns raw ledger rows after the given sequence number.
func (s *Service) UpdatesSince(ctx context.Context, since int64, limit int) ([]models.Movement, int64, error) {
	_, ledger, err := s.snapshot()
	if err != nil {
		return nil, 0, err
	}
	return ledger.UpdatesSince(ctx, since, limit)
}

// LastSeq returns the feed cursor matching a full snapshot.
func (s *Service) LastSeq(ctx context.Context) (int64, error) {
	_, ledger, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	return ledger.LastSeq(ctx)
}

func (s *Service) mirrorRow(ctx context.Context, row models.Movement) {
	s.mu.RLock()
	mirror := s.mirror
	s.mu.RUnlock()
	if mirror == nil {
		return
	}
	if err := mirror.MirrorRow(ctx, row); err != nil {
		log.Warn().Err(err).Int64("seq", row.Seq).Msg("postgres mirror write failed")
	}
}

func diffPct(planned, copied decimal.Decimal) decimal.Decimal {
	if planned.Sign() <= 0 {
		return decimal.Zero
	}
	return copied.Sub(planned).Div(planned).Mul(decimal.NewFromInt(100))
}
