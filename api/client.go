// Package api talks to the leader activity source (the public data API).
// The poller depends only on DataClient, so tests inject a mock.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateLimited signals the upstream asked us to slow down. The poller
// absorbs it through backoff; it is never a hard failure.
var ErrRateLimited = errors.New("upstream rate limited")

// DataClient is the leader activity source.
type DataClient interface {
	// PositionsValue returns the leader's total open position value.
	PositionsValue(ctx context.Context, leader string) (decimal.Decimal, error)
	// RecentTrades returns the leader's newest trades, newest first.
	RecentTrades(ctx context.Context, leader string, limit int) ([]Trade, error)
	// ClosedPositions returns recently resolved positions of the leader.
	ClosedPositions(ctx context.Context, leader string, limit int) ([]ClosedPosition, error)
}

// Client is the HTTP implementation of DataClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a data API client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) PositionsValue(ctx context.Context, leader string) (decimal.Decimal, error) {
	var rows []userValue
	params := url.Values{"user": {leader}}
	if err := c.getJSON(ctx, "/value", params, &rows); err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Value, nil
}

func (c *Client) RecentTrades(ctx context.Context, leader string, limit int) ([]Trade, error) {
	var trades []Trade
	params := url.Values{
		"user":  {leader},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, "/trades", params, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func (c *Client) ClosedPositions(ctx context.Context, leader string, limit int) ([]ClosedPosition, error) {
	var positions []ClosedPosition
	params := url.Values{
		"user":          {leader},
		"limit":         {strconv.Itoa(limit)},
		"sortBy":        {"TIMESTAMP"},
		"sortDirection": {"DESC"},
	}
	if err := c.getJSON(ctx, "/closed-positions", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("api: %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: %s: decode: %w", path, err)
	}
	return nil
}

// IsRateLimited reports whether err is an upstream throttle signal, either
// the typed sentinel or a textual 429 from a lower layer.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
