// Package execution converts accepted decisions into broker order calls and
// journals every placement attempt.
//
// Placement failures are logged and treated as "no change this cycle": the
// call is never retried synchronously (the next bar's poll refresh naturally
// re-evaluates), and a failure never crashes the decision loop.
package execution

import (
	"context"
	"log"
	"time"

	"meanrev-traderv1/internal/logger"
	"meanrev-traderv1/internal/model"
)

// OrderTypeMarket is the only order type the pipeline places.
const OrderTypeMarket = "MARKET"

// Dispatcher places orders for one instrument through the execution client.
type Dispatcher struct {
	broker  model.ExecutionClient
	symbol  string
	journal *Journal // optional

	// Optional metrics hooks
	OnOrderPlaced func(d model.Decision)
	OnOrderError  func(d model.Decision)
}

// NewDispatcher creates a Dispatcher. journal may be nil.
func NewDispatcher(broker model.ExecutionClient, symbol string, journal *Journal) *Dispatcher {
	return &Dispatcher{broker: broker, symbol: symbol, journal: journal}
}

// Dispatch sends an actionable decision to the broker as a market order.
// NoAction decisions are ignored. Returns the broker ack for bookkeeping;
// the ack is never trusted over the next position poll.
func (x *Dispatcher) Dispatch(ctx context.Context, d model.Decision) (model.OrderAck, bool) {
	if !d.Actionable() {
		return model.OrderAck{}, false
	}

	// One trace ID per placement attempt, threaded through the broker call
	// and both log lines.
	tid := logger.GenerateTraceID(x.symbol, time.Now())
	ctx = logger.WithTraceID(ctx, tid)

	ack, err := x.broker.PlaceOrder(ctx, x.symbol, d.Side, d.Quantity, OrderTypeMarket)
	if err != nil {
		log.Printf("[executor] %s %s qty=%d trace=%s failed: %v (no change this cycle)", d.Kind, d.Side, d.Quantity, tid, err)
		if x.OnOrderError != nil {
			x.OnOrderError(d)
		}
		x.record(d, model.OrderAck{}, err)
		return model.OrderAck{}, false
	}

	log.Printf("[executor] %s %s %s qty=%d order=%s status=%s trace=%s reason=%q",
		d.Kind, d.Side, x.symbol, d.Quantity, ack.OrderID, ack.Status, tid, d.Reason)
	if x.OnOrderPlaced != nil {
		x.OnOrderPlaced(d)
	}
	x.record(d, ack, nil)
	return ack, true
}

func (x *Dispatcher) record(d model.Decision, ack model.OrderAck, err error) {
	if x.journal == nil {
		return
	}
	if jerr := x.journal.RecordOrder(x.symbol, d, ack, err); jerr != nil {
		log.Printf("[executor] journal write failed: %v", jerr)
	}
}
