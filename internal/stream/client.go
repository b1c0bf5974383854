// Package stream owns the market data transport lifecycle: it acquires a
// stream handle from the broker, subscribes to quote and trade feeds for one
// instrument, normalizes inbound messages into ticks, and reconnects on any
// failure or closure until the process-wide context is cancelled.
package stream

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/pkg/ironbeam"
)

// State is the ingestion client's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Broker is the slice of the execution collaborator the stream client needs.
type Broker interface {
	CreateStream(ctx context.Context) (ironbeam.StreamHandle, error)
	StreamURL(h ironbeam.StreamHandle) string
	SubscribeQuotes(ctx context.Context, h ironbeam.StreamHandle, symbol string) error
	SubscribeTrades(ctx context.Context, h ironbeam.StreamHandle, symbol string) error
}

const (
	handleBackoff   = 5 * time.Second // failed to obtain a stream handle
	cleanCloseDelay = 1 * time.Second // transport closed without error
	errorCloseDelay = 2 * time.Second // read-path error, avoid hot-looping
)

// Client streams market data and pushes normalized ticks into a tick channel.
type Client struct {
	broker Broker
	symbol string
	dialer *websocket.Dialer

	state atomic.Int32

	// Optional metrics hooks
	OnReconnect   func()
	OnDroppedTick func()
	OnBadMessage  func()
}

// New creates a stream client for one instrument symbol.
func New(broker Broker, symbol string) *Client {
	return &Client{
		broker: broker,
		symbol: symbol,
		dialer: websocket.DefaultDialer,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Run drives the connect/subscribe/stream/reconnect loop until ctx is
// cancelled. It never returns on its own: every transport failure, handle
// failure, or clean closure transitions back to connecting after a delay.
func (c *Client) Run(ctx context.Context, tickCh chan<- model.Tick, balanceCh chan<- BalanceUpdate) {
	defer c.setState(StateDisconnected)

	for ctx.Err() == nil {
		c.setState(StateConnecting)

		// A stream handle is single-use: renew it on every attempt.
		handle, err := c.broker.CreateStream(ctx)
		if err != nil {
			log.Printf("[stream] create stream handle: %v (retrying in %v)", err, handleBackoff)
			if !sleepCtx(ctx, handleBackoff) {
				return
			}
			continue
		}

		conn, _, err := c.dialer.DialContext(ctx, c.broker.StreamURL(handle), nil)
		if err != nil {
			log.Printf("[stream] dial: %v (retrying in %v)", err, errorCloseDelay)
			if !sleepCtx(ctx, errorCloseDelay) {
				return
			}
			continue
		}

		c.subscribe(ctx, handle)
		c.setState(StateStreaming)
		log.Printf("[stream] streaming %s (stream=%s)", c.symbol, handle.ID)

		readErr := c.readLoop(ctx, conn, tickCh, balanceCh)
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		if c.OnReconnect != nil {
			c.OnReconnect()
		}
		delay := errorCloseDelay
		if isCleanClose(readErr) {
			delay = cleanCloseDelay
			log.Printf("[stream] connection closed, reconnecting in %v", delay)
		} else {
			log.Printf("[stream] read error: %v, reconnecting in %v", readErr, delay)
		}
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// subscribe issues the per-feed subscribe requests. Failures are logged but
// never abort the connection: transient subscribe failures self-correct on
// reconnect, and streaming in a degraded state beats a crash loop.
func (c *Client) subscribe(ctx context.Context, handle ironbeam.StreamHandle) {
	if err := c.broker.SubscribeQuotes(ctx, handle, c.symbol); err != nil {
		log.Printf("[stream] subscribe quotes: %v (continuing)", err)
	}
	if err := c.broker.SubscribeTrades(ctx, handle, c.symbol); err != nil {
		log.Printf("[stream] subscribe trades: %v (continuing)", err)
	}
	c.setState(StateSubscribed)
}

// readLoop consumes messages until the transport closes or ctx is cancelled.
// A malformed message is skipped, never fatal.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, tickCh chan<- model.Tick, balanceCh chan<- BalanceUpdate) error {
	// Unblock the blocking read when the process shuts down.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := Normalize(raw)
		if err != nil {
			log.Printf("[stream] dropping message: %v", err)
			if c.OnBadMessage != nil {
				c.OnBadMessage()
			}
			continue
		}

		switch msg.Kind {
		case MsgPing:
			// keepalive, nothing to do

		case MsgBalance:
			select {
			case balanceCh <- msg.Balance:
			default:
				// guard only needs the latest value, stale pushes can go
			}

		case MsgQuotes, MsgTrades:
			for _, tick := range msg.Ticks {
				select {
				case tickCh <- tick:
				default:
					log.Println("[stream] tick channel full, dropping tick")
					if c.OnDroppedTick != nil {
						c.OnDroppedTick()
					}
				}
			}
		}
	}
}

// isCleanClose reports whether the read loop ended with a normal closure.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
