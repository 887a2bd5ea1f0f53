// Package handlers exposes the sync server: a state snapshot, an incremental
// update feed for reconnecting clients and token-gated write operations.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"polymarket-copytrader/config"
	"polymarket-copytrader/models"
	"polymarket-copytrader/service"
	"polymarket-copytrader/syncer"
)

// UpdatesFeedLimit caps one page of the incremental feed. Clients page by
// re-requesting with the returned last_seq.
const UpdatesFeedLimit = 200

// Handler handles HTTP requests.
type Handler struct {
	cfg     *config.Config
	service *service.Service
	poller  *syncer.Poller
	hub     *Hub
}

// NewHandler creates a new handler. The poller may be nil when the server
// runs without a monitoring loop.
func NewHandler(cfg *config.Config, svc *service.Service, poller *syncer.Poller, hub *Hub) *Handler {
	return &Handler{
		cfg:     cfg,
		service: svc,
		poller:  poller,
		hub:     hub,
	}
}

// GetState returns the full dashboard snapshot.
func (h *Handler) GetState(c *gin.Context) {
	state := gin.H{
		"configured": h.service.Profile() != nil,
		"monitoring": h.poller != nil && h.poller.Running(),
	}
	if h.poller != nil {
		m := h.poller.Metrics()
		state["poller"] = m
		if m.Warning != "" {
			state["warning"] = m.Warning
		}
	}

	d, err := h.service.Dashboard(c.Request.Context())
	if errors.Is(err, config.ErrNotConfigured) {
		c.JSON(http.StatusOK, state)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}

	lastSeq, err := h.service.LastSeq(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}

	state["account"] = d.Account
	state["last_seq"] = lastSeq
	state["open_count"] = d.OpenCount
	state["settled_count"] = d.SettledCount
	state["total_count"] = d.TotalCount
	state["daily_pnl"] = d.Daily
	state["cumulative_pnl"] = d.Cumulative
	state["recent"] = d.Recent
	c.JSON(http.StatusOK, state)
}

// GetUpdates returns ledger rows after the client's cursor.
func (h *Handler) GetUpdates(c *gin.Context) {
	var since int64
	if v, ok := c.Get("since"); ok {
		since = v.(int64)
	}

	rows, lastSeq, err := h.service.UpdatesSince(c.Request.Context(), since, UpdatesFeedLimit)
	if err != nil {
		if errors.Is(err, config.ErrNotConfigured) {
			c.JSON(http.StatusOK, gin.H{"updates": []models.Movement{}, "last_seq": 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load updates"})
		return
	}
	if rows == nil {
		rows = []models.Movement{}
	}
	c.JSON(http.StatusOK, gin.H{
		"updates":  rows,
		"last_seq": lastSeq,
		"count":    len(rows),
	})
}

// ConfigureRequest is the payload for setting up the copy profile.
type ConfigureRequest struct {
	LeaderAddress       string          `json:"leader_address"`
	AllocatedFunds      decimal.Decimal `json:"allocated_funds"`
	MaxTradePct         decimal.Decimal `json:"max_trade_pct"`
	MaxTotalExposurePct decimal.Decimal `json:"max_total_exposure_pct"`
	MinCopyUSD          decimal.Decimal `json:"min_copy_usd"`
	PollIntervalMS      int             `json:"poll_interval_ms"`
	RiskLevel           string          `json:"risk_level"`
	SimulationMode      bool            `json:"simulation_mode"`
}

// Configure validates and persists a new copy profile.
func (h *Handler) Configure(c *gin.Context) {
	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profile := &config.Profile{
		LeaderAddress:       req.LeaderAddress,
		AllocatedFunds:      req.AllocatedFunds,
		MaxTradePct:         req.MaxTradePct,
		MaxTotalExposurePct: req.MaxTotalExposurePct,
		MinCopyUSD:          req.MinCopyUSD,
		PollIntervalMS:      req.PollIntervalMS,
		RiskLevel:           config.RiskLevel(req.RiskLevel),
		SimulationMode:      req.SimulationMode,
	}
	if profile.RiskLevel == "" {
		profile.RiskLevel = config.RiskBalanced
	}
	if profile.PollIntervalMS == 0 {
		profile.PollIntervalMS = 3000
	}

	if err := h.service.Configure(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}

// PlanRequest sizes a hypothetical movement without recording it.
type PlanRequest struct {
	LeaderValue    decimal.Decimal `json:"leader_value"`
	PositionsValue decimal.Decimal `json:"positions_value"`
}

// Plan runs the governor against the current exposure.
func (h *Handler) Plan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.service.Plan(c.Request.Context(), req.LeaderValue, req.PositionsValue)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": result, "allowed": result.Allowed()})
}

// RecordRequest is the payload for recording one leader movement.
type RecordRequest struct {
	MovementID     string          `json:"movement_id"`
	MarketID       string          `json:"market_id"`
	LeaderValue    decimal.Decimal `json:"leader_value"`
	LeaderPrice    decimal.Decimal `json:"leader_price"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	Side           string          `json:"side"`
	Outcome        string          `json:"outcome"`
	CopiedValue    decimal.Decimal `json:"copied_value"`
}

// Record sizes and appends one movement.
func (h *Handler) Record(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.MarketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market_id required"})
		return
	}

	row, plan, err := h.service.Record(c.Request.Context(), service.RecordInput{
		MovementID:     req.MovementID,
		MarketID:       req.MarketID,
		LeaderValue:    req.LeaderValue,
		LeaderPrice:    req.LeaderPrice,
		PositionsValue: req.PositionsValue,
		Side:           req.Side,
		Outcome:        req.Outcome,
		CopiedValue:    req.CopiedValue,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !plan.Allowed() {
		c.JSON(http.StatusOK, gin.H{"recorded": false, "plan": plan})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true, "plan": plan, "movement": row})
}

// SettleRequest marks a recorded movement as settled.
type SettleRequest struct {
	MovementID string          `json:"movement_id"`
	PnL        decimal.Decimal `json:"pnl"`
	SettledAt  *time.Time      `json:"settled_at"`
}

// Settle records the realized result for an open movement.
func (h *Handler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.MovementID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "movement_id required"})
		return
	}

	settledAt := time.Now().UTC()
	if req.SettledAt != nil {
		settledAt = req.SettledAt.UTC()
	}
	row, err := h.service.Settle(c.Request.Context(), req.MovementID, req.PnL, settledAt)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movement": row})
}

// StartMonitor launches the polling loop.
func (h *Handler) StartMonitor(c *gin.Context) {
	if h.poller == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitoring not available"})
		return
	}
	if err := h.poller.Start(); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitoring": true})
}

// StopMonitor halts the polling loop.
func (h *Handler) StopMonitor(c *gin.Context) {
	if h.poller == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitoring not available"})
		return
	}
	h.poller.Stop()
	c.JSON(http.StatusOK, gin.H{"monitoring": false})
}

// GetMovement returns the merged state of one movement.
func (h *Handler) GetMovement(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "movement id required"})
		return
	}

	ledger := h.service.Ledger()
	if ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not configured"})
		return
	}
	m, err := ledger.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movement": m})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateID),
		errors.Is(err, models.ErrAlreadySettled),
		errors.Is(err, models.ErrNotRecorded),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, config.ErrNotConfigured):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
