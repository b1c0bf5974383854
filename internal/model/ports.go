package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the decision path and archival sinks from
// concrete implementations (broker REST client, Redis, SQLite).

// OrderAck is the broker's acknowledgement of an order placement.
type OrderAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ExecutionClient is the narrow broker contract consumed by the decision
// path. Order placement carries no idempotency key; callers dedupe through
// the at-most-one-open-position invariant, not through the API.
type ExecutionClient interface {
	// PlaceOrder submits a market or limit order.
	PlaceOrder(ctx context.Context, symbol string, side Side, qty int64, orderType string) (OrderAck, error)

	// OpenPositions returns the broker's current open positions.
	OpenPositions(ctx context.Context) ([]PositionState, error)

	// AccountEquity returns total account equity.
	AccountEquity(ctx context.Context) (float64, error)
}

// BarWriter archives completed bars. Implementations must never block the
// producing pipeline beyond their input channel.
type BarWriter interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}
