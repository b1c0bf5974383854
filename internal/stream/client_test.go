package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/pkg/ironbeam"
)

type fakeBroker struct {
	url     string
	creates atomic.Int32
}

func (f *fakeBroker) CreateStream(ctx context.Context) (ironbeam.StreamHandle, error) {
	n := f.creates.Add(1)
	return ironbeam.StreamHandle{ID: "stream-" + string(rune('0'+n))}, nil
}

func (f *fakeBroker) StreamURL(h ironbeam.StreamHandle) string { return f.url }

func (f *fakeBroker) SubscribeQuotes(ctx context.Context, h ironbeam.StreamHandle, symbol string) error {
	return nil
}

func (f *fakeBroker) SubscribeTrades(ctx context.Context, h ironbeam.StreamHandle, symbol string) error {
	return nil
}

// wsServer upgrades each connection, pushes the given payloads, then closes
// with a normal closure frame.
func wsServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		// give the client a moment to read the close frame
		time.Sleep(50 * time.Millisecond)
	}))
}

func TestClient_StreamsTicksAndBalances(t *testing.T) {
	srv := wsServer(t,
		`{"p":"ping"}`,
		`{"b":{"totalEquity":1250}}`,
		`{"tr":[{"p":100.5,"sz":2,"st":1700000000000}]}`,
		`{"bogus":`,
		`{"q":[{"b":99,"a":101,"bs":1,"as":1,"at":1700000001000}]}`,
	)
	defer srv.Close()

	broker := &fakeBroker{url: "ws" + strings.TrimPrefix(srv.URL, "http")}
	c := New(broker, "XCME:MNQ.Z25")

	var badMsgs atomic.Int32
	c.OnBadMessage = func() { badMsgs.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickCh := make(chan model.Tick, 16)
	balanceCh := make(chan BalanceUpdate, 4)
	go c.Run(ctx, tickCh, balanceCh)

	select {
	case b := <-balanceCh:
		if b.Equity != 1250 {
			t.Errorf("expected equity 1250, got %v", b.Equity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no balance update received")
	}

	var got []model.Tick
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tk := <-tickCh:
			got = append(got, tk)
		case <-deadline:
			t.Fatalf("expected 2 ticks, got %d", len(got))
		}
	}
	if got[0].Kind != model.TickTrade || got[0].Price != 100.5 {
		t.Errorf("unexpected trade tick: %+v", got[0])
	}
	if got[1].Kind != model.TickQuote || got[1].Bid != 99 {
		t.Errorf("unexpected quote tick: %+v", got[1])
	}
	if badMsgs.Load() != 1 {
		t.Errorf("expected 1 malformed message skip, got %d", badMsgs.Load())
	}
}

func TestClient_ReconnectsWithFreshHandle(t *testing.T) {
	srv := wsServer(t) // closes immediately after upgrade
	defer srv.Close()

	broker := &fakeBroker{url: "ws" + strings.TrimPrefix(srv.URL, "http")}
	c := New(broker, "XCME:MNQ.Z25")

	var reconnects atomic.Int32
	c.OnReconnect = func() { reconnects.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickCh := make(chan model.Tick, 1)
	balanceCh := make(chan BalanceUpdate, 1)
	go c.Run(ctx, tickCh, balanceCh)

	// Each cycle acquires a new stream handle, so a second CreateStream call
	// proves a full reconnect happened.
	deadline := time.After(5 * time.Second)
	for broker.creates.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected a reconnect, CreateStream calls=%d", broker.creates.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
	if reconnects.Load() < 1 {
		t.Errorf("expected OnReconnect to fire, got %d", reconnects.Load())
	}

	cancel()
	// Run exits on cancel and parks the state at disconnected.
	time.Sleep(100 * time.Millisecond)
	if c.State() != StateDisconnected {
		t.Errorf("expected disconnected after cancel, got %v", c.State())
	}
}
