// Package strategy evaluates completed bars and emits trading decisions.
//
// A Strategy observes every bar (keeping its internal state warm even while
// trading is paused) and evaluates into a Decision only when the risk guard
// asks for one. State is held in an explicit instance constructed once per
// trading session, never in globals.
package strategy

import "meanrev-traderv1/internal/model"

// Strategy is the interface the decision loop drives.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Observe folds a completed bar into the strategy's state. It is
	// called exactly once per bar, before any gating.
	Observe(bar model.Bar)

	// Evaluate returns the trading decision for the current state.
	Evaluate() model.Decision
}
