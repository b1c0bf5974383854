// Package ironbeam is a minimal REST client for the Ironbeam trading API.
// It covers only the surface the trading daemon consumes: session auth,
// stream handle creation, market data subscriptions, order placement, and
// account balance/position reads.
//
// Usage example:
//
//	ib := ironbeam.New(ironbeam.Config{BaseURL: "https://live.ironbeamapi.com", AccountID: "12345"})
//	if err := ib.Authenticate(ctx, "12345", "apikey"); err != nil { log.Fatal(err) }
//	h, err := ib.CreateStream(ctx)
package ironbeam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meanrev-traderv1/internal/model"
)

const defaultTimeout = 10 * time.Second

// Config configures the REST client.
type Config struct {
	BaseURL   string // e.g. https://live.ironbeamapi.com
	AccountID string
	Timeout   time.Duration // default 10s

	// HTTPClient overrides the default client (used in tests).
	HTTPClient *http.Client
}

// Client is the Ironbeam REST client. It is safe for use from a single
// decision goroutine; the underlying session token is set once by
// Authenticate and read-only afterwards.
type Client struct {
	base       string
	accountID  string
	token      string
	httpClient *http.Client
}

// StreamHandle is a short-lived stream session identifier. Handles are
// single-use: a fresh one must be created on every reconnect.
type StreamHandle struct {
	ID string `json:"streamId"`
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		accountID:  cfg.AccountID,
		httpClient: hc,
	}
}

// Token returns the current session token ("" before Authenticate).
func (c *Client) Token() string { return c.token }

// Authenticate exchanges username + API key for a bearer token. An error
// here is fatal for the caller: the process must not proceed to streaming
// without a valid token.
func (c *Client) Authenticate(ctx context.Context, username, apiKey string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"Username": username, "ApiKey": apiKey}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/auth", body, &out); err != nil {
		return fmt.Errorf("ironbeam auth: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("ironbeam auth: empty token in response")
	}
	c.token = out.Token
	return nil
}

// CreateStream requests a fresh stream handle. Failures are transient:
// callers retry after a backoff instead of terminating.
func (c *Client) CreateStream(ctx context.Context) (StreamHandle, error) {
	var h StreamHandle
	if err := c.doJSON(ctx, http.MethodGet, "/v2/stream/create", nil, &h); err != nil {
		return StreamHandle{}, fmt.Errorf("ironbeam create stream: %w", err)
	}
	if h.ID == "" {
		return StreamHandle{}, fmt.Errorf("ironbeam create stream: no streamId in response")
	}
	return h, nil
}

// StreamURL returns the websocket endpoint for a stream handle.
func (c *Client) StreamURL(h StreamHandle) string {
	ws := strings.Replace(c.base, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return fmt.Sprintf("%s/v2/stream/%s?token=%s", ws, h.ID, url.QueryEscape(c.token))
}

// SubscribeQuotes subscribes the stream to quote updates for symbol.
// Subscribe failures are non-fatal by contract; the caller logs and
// continues in a degraded state.
func (c *Client) SubscribeQuotes(ctx context.Context, h StreamHandle, symbol string) error {
	path := fmt.Sprintf("/v1/market/quotes/subscribe/%s?symbols=%s", h.ID, url.QueryEscape(symbol))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil); err != nil {
		return fmt.Errorf("ironbeam subscribe quotes: %w", err)
	}
	return nil
}

// SubscribeTrades subscribes the stream to trade prints for symbol.
func (c *Client) SubscribeTrades(ctx context.Context, h StreamHandle, symbol string) error {
	path := fmt.Sprintf("/v1/market/trades/subscribe/%s?symbols=%s", h.ID, url.QueryEscape(symbol))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil); err != nil {
		return fmt.Errorf("ironbeam subscribe trades: %w", err)
	}
	return nil
}

// PlaceOrder submits an order for the configured account. The API exposes
// no idempotency key, so a retried call can double-fill; callers dedupe via
// the at-most-one-open-position invariant.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side model.Side, qty int64, orderType string) (model.OrderAck, error) {
	body := map[string]any{
		"exchSym":   symbol,
		"side":      string(side),
		"orderType": orderType,
		"quantity":  qty,
	}
	var out struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	}
	path := fmt.Sprintf("/v2/order/%s/place", c.accountID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return model.OrderAck{}, fmt.Errorf("ironbeam place order: %w", err)
	}
	if out.Error != "" {
		return model.OrderAck{}, fmt.Errorf("ironbeam place order rejected: %s", out.Error)
	}
	return model.OrderAck{OrderID: out.OrderID, Status: out.Status}, nil
}

// OpenPositions returns the broker's current open positions.
func (c *Client) OpenPositions(ctx context.Context) ([]model.PositionState, error) {
	var out struct {
		Positions []struct {
			ExchSym      string  `json:"exchSym"`
			Side         string  `json:"side"`
			Quantity     int64   `json:"quantity"`
			Price        float64 `json:"price"`
			UnrealizedPL float64 `json:"unrealizedPL"`
			PositionID   string  `json:"positionId"`
		} `json:"positions"`
	}
	path := fmt.Sprintf("/v2/account/%s/positions", c.accountID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("ironbeam positions: %w", err)
	}

	positions := make([]model.PositionState, 0, len(out.Positions))
	for _, p := range out.Positions {
		positions = append(positions, model.PositionState{
			Symbol:        p.ExchSym,
			Side:          model.Side(strings.ToUpper(p.Side)),
			Quantity:      p.Quantity,
			EntryPrice:    p.Price,
			UnrealizedPnL: p.UnrealizedPL,
			PositionID:    p.PositionID,
		})
	}
	return positions, nil
}

// AccountEquity returns total account equity from the balance endpoint.
func (c *Client) AccountEquity(ctx context.Context) (float64, error) {
	var out struct {
		Balances []struct {
			TotalEquity float64 `json:"totalEquity"`
		} `json:"balances"`
	}
	path := fmt.Sprintf("/v2/account/%s/balance", c.accountID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, fmt.Errorf("ironbeam balance: %w", err)
	}
	if len(out.Balances) == 0 {
		return 0, fmt.Errorf("ironbeam balance: empty balances list")
	}
	return out.Balances[0].TotalEquity, nil
}

// doJSON performs one HTTP round-trip with JSON encoding on both sides.
// out may be nil when the caller only cares about the status code.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[ironbeam] %s %s -> %d: %s", method, path, resp.StatusCode, truncate(raw, 300))
		return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(raw, 120))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
