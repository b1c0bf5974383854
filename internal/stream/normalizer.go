package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meanrev-traderv1/internal/model"
)

// MsgKind classifies an inbound stream message.
type MsgKind int

const (
	MsgUnknown MsgKind = iota
	MsgPing
	MsgBalance
	MsgQuotes
	MsgTrades
)

func (k MsgKind) String() string {
	switch k {
	case MsgPing:
		return "ping"
	case MsgBalance:
		return "balance"
	case MsgQuotes:
		return "quotes"
	case MsgTrades:
		return "trades"
	default:
		return "unknown"
	}
}

// BalanceUpdate carries an account equity push from the stream. It feeds the
// risk guard's balance channel, not the tick path.
type BalanceUpdate struct {
	Equity float64
}

// Message is the result of normalizing one raw stream payload.
type Message struct {
	Kind    MsgKind
	Ticks   []model.Tick // populated for MsgQuotes / MsgTrades
	Balance BalanceUpdate
}

// rawMessage mirrors the broker's compact stream envelope. Exactly one of
// the markers is expected per message.
type rawMessage struct {
	P  string          `json:"p,omitempty"`  // ping marker
	B  json.RawMessage `json:"b,omitempty"`  // balance push
	Q  []rawQuote      `json:"q,omitempty"`  // quote batch
	TR []rawTrade      `json:"tr,omitempty"` // trade batch
}

type rawQuote struct {
	Bid     float64 `json:"b"`
	Ask     float64 `json:"a"`
	BidSize float64 `json:"bs"`
	AskSize float64 `json:"as"`
	Last    float64 `json:"la"`
	At      int64   `json:"at"` // epoch millis
}

type rawTrade struct {
	Price float64 `json:"p"`
	Size  float64 `json:"sz"`
	At    int64   `json:"st"` // epoch millis
}

type rawBalance struct {
	TotalEquity float64 `json:"totalEquity"`
}

// Normalize classifies one raw inbound payload and emits zero or more
// normalized ticks. Unrecognized or malformed payloads return an error that
// the caller logs and skips; they never interrupt the stream.
func Normalize(raw []byte) (Message, error) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode stream message: %w", err)
	}

	switch {
	case strings.Contains(msg.P, "ping"):
		return Message{Kind: MsgPing}, nil

	case len(msg.B) > 0:
		return Message{Kind: MsgBalance, Balance: parseBalance(msg.B)}, nil

	case len(msg.Q) > 0:
		ticks := make([]model.Tick, 0, len(msg.Q))
		for _, q := range msg.Q {
			ticks = append(ticks, model.Tick{
				Kind:    model.TickQuote,
				Bid:     q.Bid,
				Ask:     q.Ask,
				BidSize: q.BidSize,
				AskSize: q.AskSize,
				TickTS:  millisToTime(q.At),
			})
		}
		return Message{Kind: MsgQuotes, Ticks: ticks}, nil

	case len(msg.TR) > 0:
		ticks := make([]model.Tick, 0, len(msg.TR))
		for _, tr := range msg.TR {
			ticks = append(ticks, model.Tick{
				Kind:   model.TickTrade,
				Price:  tr.Price,
				Size:   tr.Size,
				TickTS: millisToTime(tr.At),
			})
		}
		return Message{Kind: MsgTrades, Ticks: ticks}, nil
	}

	return Message{}, fmt.Errorf("unrecognized stream message: %s", truncate(raw, 120))
}

// parseBalance extracts total equity from a balance push. The payload shape
// varies (single object or list); a zero Equity means "not parseable" and
// the guard falls back to its next REST poll.
func parseBalance(raw json.RawMessage) BalanceUpdate {
	var one rawBalance
	if err := json.Unmarshal(raw, &one); err == nil && one.TotalEquity != 0 {
		return BalanceUpdate{Equity: one.TotalEquity}
	}
	var many []rawBalance
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return BalanceUpdate{Equity: many[0].TotalEquity}
	}
	return BalanceUpdate{}
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
