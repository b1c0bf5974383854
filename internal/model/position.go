package model

// PositionState is the broker's view of one open position. It is refreshed
// by polling the execution client; the broker is the source of truth and the
// struct is never mutated locally except by a poll refresh.
type PositionState struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      int64   `json:"quantity"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PositionID    string  `json:"position_id"`
}
