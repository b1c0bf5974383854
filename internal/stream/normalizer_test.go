package stream

import (
	"testing"
	"time"

	"meanrev-traderv1/internal/model"
)

func TestNormalize_Ping(t *testing.T) {
	msg, err := Normalize([]byte(`{"p":"ping 2026-08-28T14:00:00Z"}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Kind != MsgPing {
		t.Errorf("expected ping, got %v", msg.Kind)
	}
	if len(msg.Ticks) != 0 {
		t.Errorf("ping must not produce ticks, got %d", len(msg.Ticks))
	}
}

func TestNormalize_BalanceObject(t *testing.T) {
	msg, err := Normalize([]byte(`{"b":{"totalEquity":1523.75}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Kind != MsgBalance {
		t.Fatalf("expected balance, got %v", msg.Kind)
	}
	if msg.Balance.Equity != 1523.75 {
		t.Errorf("expected equity 1523.75, got %v", msg.Balance.Equity)
	}
}

func TestNormalize_BalanceList(t *testing.T) {
	msg, err := Normalize([]byte(`{"b":[{"totalEquity":980.5},{"totalEquity":12}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Balance.Equity != 980.5 {
		t.Errorf("expected first entry equity 980.5, got %v", msg.Balance.Equity)
	}
}

func TestNormalize_BalanceUnparseable(t *testing.T) {
	msg, err := Normalize([]byte(`{"b":{"cash":100}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Balance.Equity != 0 {
		t.Errorf("expected zero equity for unknown shape, got %v", msg.Balance.Equity)
	}
}

func TestNormalize_QuoteBatch(t *testing.T) {
	raw := []byte(`{"q":[{"b":100.25,"a":100.75,"bs":3,"as":5,"la":100.5,"at":1700000000000},{"b":101,"a":102,"bs":1,"as":1,"la":101.5,"at":1700000001000}]}`)
	msg, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Kind != MsgQuotes {
		t.Fatalf("expected quotes, got %v", msg.Kind)
	}
	if len(msg.Ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(msg.Ticks))
	}

	tk := msg.Ticks[0]
	if tk.Kind != model.TickQuote {
		t.Errorf("expected quote tick, got %v", tk.Kind)
	}
	if tk.Bid != 100.25 || tk.Ask != 100.75 || tk.BidSize != 3 || tk.AskSize != 5 {
		t.Errorf("unexpected quote fields: %+v", tk)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !tk.TickTS.Equal(want) {
		t.Errorf("expected ts %v, got %v", want, tk.TickTS)
	}

	price, size, ok := tk.Sample(false)
	if !ok || price != 100.5 || size != 4 {
		t.Errorf("expected midpoint 100.5 size 4, got %v %v ok=%v", price, size, ok)
	}
}

func TestNormalize_TradeBatch(t *testing.T) {
	raw := []byte(`{"tr":[{"p":100.5,"sz":2,"st":1700000002500}]}`)
	msg, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Kind != MsgTrades {
		t.Fatalf("expected trades, got %v", msg.Kind)
	}
	if len(msg.Ticks) != 1 {
		t.Fatalf("expected 1 tick, got %d", len(msg.Ticks))
	}

	tk := msg.Ticks[0]
	if tk.Kind != model.TickTrade || tk.Price != 100.5 || tk.Size != 2 {
		t.Errorf("unexpected trade tick: %+v", tk)
	}
	if tk.TickTS.UnixMilli() != 1700000002500 {
		t.Errorf("expected ts millis 1700000002500, got %d", tk.TickTS.UnixMilli())
	}
}

func TestNormalize_MissingTimestampGetsWallClock(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	msg, err := Normalize([]byte(`{"tr":[{"p":99,"sz":1}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if msg.Ticks[0].TickTS.Before(before) {
		t.Errorf("expected wall clock fallback, got %v", msg.Ticks[0].TickTS)
	}
}

func TestNormalize_MalformedJSON(t *testing.T) {
	if _, err := Normalize([]byte(`{"q":[`)); err == nil {
		t.Error("expected decode error for malformed payload")
	}
}

func TestNormalize_UnrecognizedEnvelope(t *testing.T) {
	if _, err := Normalize([]byte(`{"x":42}`)); err == nil {
		t.Error("expected error for unrecognized message")
	}
}
