package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	tickCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrader_poll_ticks_total",
		Help: "Poll ticks by outcome.",
	}, []string{"outcome"})

	intervalGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrader_poll_interval_seconds",
		Help: "Current adaptive poll interval.",
	})

	movementsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrader_movements_recorded_total",
		Help: "Movements accepted by the governor and appended to the ledger.",
	})

	movementsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrader_movements_rejected_total",
		Help: "Movements rejected by the governor, by reason.",
	}, []string{"reason"})

	settlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrader_settlements_total",
		Help: "Open movements settled against leader closed positions.",
	})
)

const metricsKey = "copytrader:metrics"

// PollerMetrics is a point-in-time snapshot of the monitoring loop.
type PollerMetrics struct {
	Running        bool          `json:"running"`
	IntervalMS     int64         `json:"interval_ms"`
	Ticks          int64         `json:"ticks"`
	RateLimited    int64         `json:"rate_limited"`
	Errors         int64         `json:"errors"`
	Recorded       int64         `json:"recorded"`
	Rejected       int64         `json:"rejected"`
	Settled        int64         `json:"settled"`
	Warning        string        `json:"warning,omitempty"`
	LastTickAt     time.Time     `json:"last_tick_at"`
	SinceLastTrade time.Duration `json:"since_last_trade_ms"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// MetricsStore persists poller snapshots in Redis so the dashboard survives
// process restarts. All operations are best effort.
type MetricsStore struct {
	redis *redis.Client
}

// NewMetricsStore creates a metrics store backed by the given Redis client.
func NewMetricsStore(redisClient *redis.Client) *MetricsStore {
	return &MetricsStore{redis: redisClient}
}

// Save stores the snapshot with a 24h expiry.
func (m *MetricsStore) Save(ctx context.Context, metrics PollerMetrics) error {
	metrics.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return m.redis.Set(ctx, metricsKey, data, 24*time.Hour).Err()
}

// Load retrieves the last saved snapshot, or a zero snapshot when none
// exists.
func (m *MetricsStore) Load(ctx context.Context) (*PollerMetrics, error) {
	data, err := m.redis.Get(ctx, metricsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return &PollerMetrics{}, nil
		}
		return nil, err
	}
	var metrics PollerMetrics
	if err := json.Unmarshal([]byte(data), &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}
