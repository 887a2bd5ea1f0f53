package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"polymarket-copytrader/api"
	"polymarket-copytrader/config"
	"polymarket-copytrader/models"
	"polymarket-copytrader/service"
)

// Poller monitors the configured leader and copies their movements. One
// goroutine polls on an adaptive interval: rate limits stretch it out,
// healthy ticks walk it back toward the floor.
type Poller struct {
	cfg    *config.Config
	svc    *service.Service
	client api.DataClient
	store  *MetricsStore

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	policy   BackoffPolicy
	interval time.Duration
	warning  string
	seen     map[string]struct{}

	ticks       int64
	rateLimited int64
	errCount    int64
	recorded    int64
	rejected    int64
	settled     int64
	lastTickAt  time.Time
	lastTradeAt time.Time
}

// NewPoller builds a poller. The metrics store may be nil; when present, the
// counters pick up from the last published snapshot so a restart does not
// zero the dashboard.
func NewPoller(cfg *config.Config, svc *service.Service, client api.DataClient, store *MetricsStore) *Poller {
	p := &Poller{
		cfg:    cfg,
		svc:    svc,
		client: client,
		store:  store,
		seen:   make(map[string]struct{}),
	}
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if m, err := store.Load(ctx); err != nil {
			log.Debug().Err(err).Msg("metrics snapshot load failed")
		} else {
			p.restore(*m)
		}
	}
	return p
}

// restore seeds the loop counters from a published snapshot. Running state,
// interval and warnings stay fresh.
func (p *Poller) restore(m PollerMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = m.Ticks
	p.rateLimited = m.RateLimited
	p.errCount = m.Errors
	p.recorded = m.Recorded
	p.rejected = m.Rejected
	p.settled = m.Settled
	p.lastTickAt = m.LastTickAt
}

// Start launches the monitoring loop. It fails when no profile is configured
// or when the loop is already running.
func (p *Poller) Start() error {
	profile := p.svc.Profile()
	if profile == nil {
		return config.ErrNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("poller already running")
	}

	p.policy = PolicyFromConfig(p.cfg.Poller)
	if profile.SimulationMode {
		p.policy.Floor = config.MinPollSimulationMS * time.Millisecond
	}
	p.interval = p.policy.Clamp(time.Duration(profile.PollIntervalMS) * time.Millisecond)
	p.stop = make(chan struct{})
	p.running = true

	p.wg.Add(1)
	go p.run()

	log.Info().
		Str("leader", profile.LeaderAddress).
		Dur("interval", p.interval).
		Bool("simulation", profile.SimulationMode).
		Msg("poller started")
	return nil
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	log.Info().Msg("poller stopped")
}

// Running reports whether the monitoring loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run() {
	defer p.wg.Done()

	p.mu.Lock()
	interval := p.interval
	stop := p.stop
	p.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(p.cfg.Poller.TickTimeoutMS)*time.Millisecond)
			sig := p.tick(ctx)
			cancel()

			interval = p.policy.Next(interval, sig)
			intervalGauge.Set(interval.Seconds())

			p.mu.Lock()
			p.interval = interval
			p.ticks++
			p.lastTickAt = time.Now().UTC()
			p.mu.Unlock()

			p.publish()
			timer.Reset(interval)
		}
	}
}

// tick runs one poll cycle: fetch leader state, copy new trades, settle open
// movements against freshly closed positions.
func (p *Poller) tick(ctx context.Context) Signal {
	profile := p.svc.Profile()
	if profile == nil {
		return SignalError
	}
	leader := profile.LeaderAddress

	positions, err := p.client.PositionsValue(ctx, leader)
	if err != nil {
		return p.failed("fetch positions value", err)
	}
	trades, err := p.client.RecentTrades(ctx, leader, p.cfg.Poller.TradesLimit)
	if err != nil {
		return p.failed("fetch recent trades", err)
	}

	for _, trade := range trades {
		if trade.Side != "BUY" {
			continue
		}
		id := movementID(profile, trade)
		if p.alreadySeen(id) {
			continue
		}

		_, plan, err := p.svc.Record(ctx, service.RecordInput{
			MovementID:     id,
			MarketID:       trade.Slug,
			LeaderValue:    trade.Notional(),
			LeaderPrice:    trade.Price,
			PositionsValue: positions,
			Side:           trade.Side,
			Outcome:        trade.Outcome,
			CreatedAt:      time.Unix(trade.Timestamp, 0).UTC(),
		})
		switch {
		case errors.Is(err, models.ErrDuplicateID):
			// Recorded on an earlier run. The seen set is rebuilt lazily.
		case err != nil:
			log.Error().Err(err).Str("market", trade.Slug).Msg("record movement failed")
			continue
		case plan.Allowed():
			movementsRecorded.Inc()
			p.mu.Lock()
			p.recorded++
			p.lastTradeAt = time.Now().UTC()
			p.mu.Unlock()
		default:
			movementsRejected.WithLabelValues(string(plan.Rejection)).Inc()
			p.mu.Lock()
			p.rejected++
			p.mu.Unlock()
		}
		p.markSeen(id)
	}

	if err := p.settleClosed(ctx, leader); err != nil {
		return p.failed("settle closed positions", err)
	}

	tickCounter.WithLabelValues("success").Inc()
	p.mu.Lock()
	p.warning = ""
	p.mu.Unlock()
	return SignalSuccess
}

// settleClosed matches the leader's recently closed positions against open
// movements and settles each match at the leader's realized return.
func (p *Poller) settleClosed(ctx context.Context, leader string) error {
	closed, err := p.client.ClosedPositions(ctx, leader, p.cfg.Poller.ClosedLimit)
	if err != nil {
		return err
	}
	if len(closed) == 0 {
		return nil
	}

	movements, err := p.svc.Movements(ctx)
	if err != nil {
		return err
	}
	queues := buildROIQueues(closed)

	for _, m := range movements {
		if !m.Open() {
			continue
		}
		roi, ok := queues.match(m)
		if !ok {
			continue
		}
		pnl := m.CopiedValue.Mul(roi)
		if _, err := p.svc.Settle(ctx, m.MovementID, pnl, time.Now().UTC()); err != nil {
			if errors.Is(err, models.ErrAlreadySettled) {
				continue
			}
			return err
		}
		settlementsTotal.Inc()
		p.mu.Lock()
		p.settled++
		p.mu.Unlock()
	}
	return nil
}

func (p *Poller) failed(op string, err error) Signal {
	if api.IsRateLimited(err) {
		tickCounter.WithLabelValues("rate_limited").Inc()
		p.mu.Lock()
		p.rateLimited++
		p.warning = "upstream rate limited, slowing down"
		p.mu.Unlock()
		log.Warn().Err(err).Str("op", op).Msg("rate limited")
		return SignalRateLimited
	}
	tickCounter.WithLabelValues("error").Inc()
	p.mu.Lock()
	p.errCount++
	p.warning = op + ": " + err.Error()
	p.mu.Unlock()
	log.Error().Err(err).Str("op", op).Msg("poll tick failed")
	return SignalError
}

func (p *Poller) alreadySeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[id]
	return ok
}

func (p *Poller) markSeen(id string) {
	p.mu.Lock()
	p.seen[id] = struct{}{}
	p.mu.Unlock()
}

// Metrics returns a snapshot of the loop's counters and state.
func (p *Poller) Metrics() PollerMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := PollerMetrics{
		Running:     p.running,
		IntervalMS:  p.interval.Milliseconds(),
		Ticks:       p.ticks,
		RateLimited: p.rateLimited,
		Errors:      p.errCount,
		Recorded:    p.recorded,
		Rejected:    p.rejected,
		Settled:     p.settled,
		Warning:     p.warning,
		LastTickAt:  p.lastTickAt,
	}
	if !p.lastTradeAt.IsZero() {
		m.SinceLastTrade = time.Since(p.lastTradeAt)
	}
	return m
}

func (p *Poller) publish() {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.store.Save(ctx, p.Metrics()); err != nil {
		log.Debug().Err(err).Msg("metrics snapshot save failed")
	}
}

// movementID derives a stable id from the trade so restarts and overlapping
// poll windows cannot double-record. Simulation runs get their own namespace.
func movementID(profile *config.Profile, t api.Trade) string {
	id := t.TransactionHash
	if t.Asset != "" {
		id += "-" + t.Asset
	}
	if profile.SimulationMode {
		return "sim-" + id
	}
	return id
}
