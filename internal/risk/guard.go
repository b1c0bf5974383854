// Package risk gates strategy decisions behind account-level guards: an
// equity floor that pauses trading, unrealized-PnL thresholds that force an
// open position closed, the at-most-one-open-position invariant, and a
// session cutover deadline.
package risk

import (
	"context"
	"fmt"
	"log"
	"time"

	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/internal/session"
	"meanrev-traderv1/internal/strategy"
)

// Limits defines the guard's configurable thresholds.
type Limits struct {
	EquityFloor  float64 // trading paused while equity <= floor
	ProfitTarget float64 // force exit at unrealized PnL >= target
	StopLoss     float64 // force exit at unrealized PnL <= stop (negative)
}

// AccountReader is the slice of the execution client the guard polls.
// The broker is the source of truth for equity and positions; the guard
// never trusts local bookkeeping over the next poll refresh.
type AccountReader interface {
	OpenPositions(ctx context.Context) ([]model.PositionState, error)
	AccountEquity(ctx context.Context) (float64, error)
}

// Guard evaluates one decision per bar, ahead of the strategy. It runs
// entirely inside the single decision goroutine, so no locking is needed.
type Guard struct {
	broker  AccountReader
	strat   strategy.Strategy
	limits  Limits
	cutover session.Cutover
	now     func() time.Time

	// Equity pushed by the stream's balance channel; used as a fallback
	// when the REST refresh fails mid-cycle.
	pushedEquity     float64
	havePushedEquity bool

	paused       bool // equity floor breached on the last refresh
	cutoverHit   bool // sticky for the remainder of the session
	lastEquity   float64
	positionOpen bool

	// Optional hooks for alerting/metrics
	OnPause      func(equity float64)
	OnResume     func(equity float64)
	OnForcedExit func(pos model.PositionState, d model.Decision)
	OnCutover    func() // fires once, when the latch first engages
}

// NewGuard creates a Guard around a strategy.
func NewGuard(broker AccountReader, strat strategy.Strategy, limits Limits, cutover session.Cutover) *Guard {
	return &Guard{
		broker:  broker,
		strat:   strat,
		limits:  limits,
		cutover: cutover,
		now:     time.Now,
	}
}

// ObserveEquity records an equity value pushed by the stream. Must be called
// from the decision goroutine.
func (g *Guard) ObserveEquity(equity float64) {
	if equity > 0 {
		g.pushedEquity = equity
		g.havePushedEquity = true
	}
}

// Paused reports whether trading is currently paused on the equity floor.
func (g *Guard) Paused() bool { return g.paused }

// LastEquity returns the equity used by the most recent evaluation.
func (g *Guard) LastEquity() float64 { return g.lastEquity }

// PositionOpen reports whether the last position poll saw an open position.
func (g *Guard) PositionOpen() bool { return g.positionOpen }

// Evaluate produces the decision for one completed bar. The strategy's
// window is appended on every bar, including paused cycles, so the lookback
// stays continuous. Any broker call failure is logged and treated as "no
// change this cycle"; the next bar naturally retries.
func (g *Guard) Evaluate(ctx context.Context, bar model.Bar) model.Decision {
	g.strat.Observe(bar)

	equity, err := g.refreshEquity(ctx)
	if err != nil {
		log.Printf("[risk] equity refresh: %v (no change this cycle)", err)
		return model.NoDecision("equity refresh failed")
	}
	g.lastEquity = equity

	if equity <= g.limits.EquityFloor {
		if !g.paused {
			g.paused = true
			log.Printf("[risk] trading paused: equity %.2f <= floor %.2f", equity, g.limits.EquityFloor)
			if g.OnPause != nil {
				g.OnPause(equity)
			}
		}
		return model.NoDecision("trading paused: equity floor breached")
	}
	if g.paused {
		g.paused = false
		log.Printf("[risk] trading resumed: equity %.2f above floor %.2f", equity, g.limits.EquityFloor)
		if g.OnResume != nil {
			g.OnResume(equity)
		}
	}

	positions, err := g.broker.OpenPositions(ctx)
	if err != nil {
		log.Printf("[risk] position refresh: %v (no change this cycle)", err)
		return model.NoDecision("position refresh failed")
	}
	g.positionOpen = len(positions) > 0

	if len(positions) > 0 {
		return g.manageOpenPosition(positions[0])
	}

	if g.cutoverHit || g.cutover.Expired(g.now()) {
		if !g.cutoverHit {
			g.cutoverHit = true
			log.Printf("[risk] session cutover %s passed, no new entries", g.cutover.Deadline().Format(time.RFC3339))
			if g.OnCutover != nil {
				g.OnCutover()
			}
		}
		return model.NoDecision("session cutover passed")
	}

	return g.strat.Evaluate()
}

// manageOpenPosition applies the PnL exit thresholds. While a position is
// open no new entry is considered, which is what makes duplicate order
// placement safe despite the API's lack of an idempotency key.
func (g *Guard) manageOpenPosition(pos model.PositionState) model.Decision {
	pnl := pos.UnrealizedPnL
	if pnl >= g.limits.ProfitTarget || pnl <= g.limits.StopLoss {
		d := model.Decision{
			Kind:     model.Exit,
			Side:     pos.Side.Opposite(),
			Quantity: pos.Quantity,
			Reason:   fmt.Sprintf("forced exit: unrealized pnl %.2f outside [%.2f, %.2f]", pnl, g.limits.StopLoss, g.limits.ProfitTarget),
		}
		log.Printf("[risk] %s", d.Reason)
		if g.OnForcedExit != nil {
			g.OnForcedExit(pos, d)
		}
		return d
	}
	return model.NoDecision("position open, holding")
}

// refreshEquity polls the broker, falling back to the last stream-pushed
// balance when the poll fails.
func (g *Guard) refreshEquity(ctx context.Context) (float64, error) {
	equity, err := g.broker.AccountEquity(ctx)
	if err == nil {
		return equity, nil
	}
	if g.havePushedEquity {
		log.Printf("[risk] equity poll failed (%v), using last pushed balance %.2f", err, g.pushedEquity)
		return g.pushedEquity, nil
	}
	return 0, err
}
