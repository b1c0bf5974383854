package model

import (
	"encoding/json"
	"time"
)

// Bar represents one completed aggregation interval (OHLCV).
// IntervalStart is the bucket start in epoch seconds, not the emit time.
// Immutable once emitted.
type Bar struct {
	IntervalStart int64   `json:"t"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
}

// FlatBar returns a degenerate bar collapsed to the previous close at zero
// volume, used for intervals in which no samples were observed.
func FlatBar(intervalStart int64, close float64) Bar {
	return Bar{
		IntervalStart: intervalStart,
		Open:          close,
		High:          close,
		Low:           close,
		Close:         close,
		Volume:        0,
	}
}

// TS returns the bucket start as a time.Time in UTC.
func (b *Bar) TS() time.Time {
	return time.Unix(b.IntervalStart, 0).UTC()
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
