package strategy

import (
	"fmt"

	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/internal/window"
)

// MeanReversion buys when the latest close undershoots the rolling mean by
// more than a proportional threshold.
//
// Entry: close < mean − factor×mean  →  Enter{BUY, qty}
//
// The rule is deliberately one-sided: it never emits a SELL entry on the
// mirrored overshoot. Exits are owned by the risk guard's PnL thresholds,
// not by this rule.
type MeanReversion struct {
	name   string
	closes *window.Window
	factor float64
	qty    int64
}

// NewMeanReversion creates the strategy with the given lookback length,
// threshold factor (e.g. 0.00075), and fixed order quantity.
func NewMeanReversion(lookback int, factor float64, qty int64) *MeanReversion {
	return &MeanReversion{
		name:   "MeanReversion",
		closes: window.New(lookback),
		factor: factor,
		qty:    qty,
	}
}

func (s *MeanReversion) Name() string {
	return s.name
}

// Observe appends the bar's close to the rolling window.
func (s *MeanReversion) Observe(bar model.Bar) {
	s.closes.Push(bar.Close)
}

// Evaluate applies the mean-reversion rule to the current window.
func (s *MeanReversion) Evaluate() model.Decision {
	if !s.closes.Full() {
		return model.NoDecision(fmt.Sprintf("warming up %d/%d", s.closes.Len(), s.closes.Cap()))
	}

	mean := s.closes.Mean()
	current := s.closes.Last()
	threshold := s.factor * mean

	if current < mean-threshold {
		return model.Decision{
			Kind:     model.Enter,
			Side:     model.SideBuy,
			Quantity: s.qty,
			Reason:   fmt.Sprintf("close %.2f below mean %.2f - threshold %.4f", current, mean, threshold),
		}
	}

	return model.NoDecision("no undershoot")
}

// WindowFill returns how many closes the lookback currently holds.
// Exposed for metrics.
func (s *MeanReversion) WindowFill() int {
	return s.closes.Len()
}
