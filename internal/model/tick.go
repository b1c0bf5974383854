package model

import "time"

// TickKind distinguishes trade prints from quote updates.
type TickKind string

const (
	TickTrade TickKind = "trade"
	TickQuote TickKind = "quote"
)

// Tick represents a single normalized price event from the market stream.
// Exactly one of the trade fields (Price/Size) or the quote fields
// (Bid/Ask/BidSize/AskSize) is populated, determined by Kind.
type Tick struct {
	Kind TickKind `json:"kind"`

	// Trade fields
	Price float64 `json:"price,omitempty"`
	Size  float64 `json:"size,omitempty"`

	// Quote fields
	Bid     float64 `json:"bid,omitempty"`
	Ask     float64 `json:"ask,omitempty"`
	BidSize float64 `json:"bid_size,omitempty"`
	AskSize float64 `json:"ask_size,omitempty"`

	TickTS time.Time `json:"tick_ts"` // exchange timestamp, UTC
}

// Sample reduces the tick to a single (price, size) observation for bar
// aggregation. Quote ticks contribute the bid/ask midpoint and the averaged
// bid/ask size, and only when tradeOnly is false. Returns ok=false when the
// tick contributes nothing.
func (t Tick) Sample(tradeOnly bool) (price, size float64, ok bool) {
	switch t.Kind {
	case TickTrade:
		return t.Price, t.Size, true
	case TickQuote:
		if tradeOnly {
			return 0, 0, false
		}
		return (t.Bid + t.Ask) / 2.0, (t.BidSize + t.AskSize) / 2.0, true
	default:
		return 0, 0, false
	}
}
