package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/internal/session"
	"meanrev-traderv1/internal/strategy"
)

// fakeBroker is a scripted AccountReader.
type fakeBroker struct {
	equity    float64
	equityErr error
	positions []model.PositionState
	posErr    error
}

func (f *fakeBroker) OpenPositions(ctx context.Context) ([]model.PositionState, error) {
	return f.positions, f.posErr
}

func (f *fakeBroker) AccountEquity(ctx context.Context) (float64, error) {
	return f.equity, f.equityErr
}

// stubStrategy records Observe calls and returns a fixed decision.
type stubStrategy struct {
	observed int
	decision model.Decision
}

var _ strategy.Strategy = (*stubStrategy)(nil)

func (s *stubStrategy) Name() string            { return "stub" }
func (s *stubStrategy) Observe(bar model.Bar)   { s.observed++ }
func (s *stubStrategy) Evaluate() model.Decision { return s.decision }

func enterBuy() model.Decision {
	return model.Decision{Kind: model.Enter, Side: model.SideBuy, Quantity: 1}
}

func TestGuard_EquityFloorForcesNoAction(t *testing.T) {
	broker := &fakeBroker{equity: 600}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind != model.NoAction {
		t.Fatalf("expected NoAction under equity floor, got %s", d.Kind)
	}
	if !g.Paused() {
		t.Error("guard not paused after floor breach")
	}
	// The window must still be appended while paused.
	if strat.observed != 1 {
		t.Errorf("expected 1 Observe call while paused, got %d", strat.observed)
	}
}

func TestGuard_ResumesAboveFloor(t *testing.T) {
	broker := &fakeBroker{equity: 600}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	g.Evaluate(context.Background(), model.Bar{Close: 100})

	broker.equity = 700
	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if g.Paused() {
		t.Error("guard still paused after equity recovered")
	}
	if d.Kind != model.Enter {
		t.Fatalf("expected strategy decision after resume, got %s", d.Kind)
	}
}

func TestGuard_ProfitTargetForcesExit(t *testing.T) {
	broker := &fakeBroker{
		equity: 1000,
		positions: []model.PositionState{{
			Symbol: "XCME:MNQ.Z25", Side: model.SideBuy, Quantity: 3, UnrealizedPnL: 30,
		}},
	}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind != model.Exit {
		t.Fatalf("expected Exit at pnl 30 >= target 25, got %s", d.Kind)
	}
	if d.Side != model.SideSell {
		t.Errorf("expected opposite-side SELL exit, got %s", d.Side)
	}
	if d.Quantity != 3 {
		t.Errorf("expected exit sized to position qty 3, got %d", d.Quantity)
	}
}

func TestGuard_StopLossForcesExit(t *testing.T) {
	broker := &fakeBroker{
		equity: 1000,
		positions: []model.PositionState{{
			Side: model.SideSell, Quantity: 2, UnrealizedPnL: -26,
		}},
	}
	g := NewGuard(broker, &stubStrategy{}, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind != model.Exit {
		t.Fatalf("expected Exit at pnl -26 <= stop -25, got %s", d.Kind)
	}
	if d.Side != model.SideBuy {
		t.Errorf("expected opposite-side BUY exit for a short, got %s", d.Side)
	}
}

func TestGuard_NoEntryWhilePositionOpen(t *testing.T) {
	broker := &fakeBroker{
		equity: 1000,
		positions: []model.PositionState{{
			Side: model.SideBuy, Quantity: 1, UnrealizedPnL: 5,
		}},
	}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind == model.Enter {
		t.Fatal("Enter emitted while a position is already open")
	}
	if d.Kind != model.NoAction {
		t.Fatalf("expected NoAction holding inside thresholds, got %s", d.Kind)
	}
}

func TestGuard_CutoverBlocksNewEntriesPermanently(t *testing.T) {
	broker := &fakeBroker{equity: 1000}
	strat := &stubStrategy{decision: enterBuy()}
	cut, err := session.Parse("2026-08-28 16:00", "America/New_York")
	if err != nil {
		t.Fatalf("parse cutover: %v", err)
	}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, cut)
	g.now = func() time.Time { return cut.Deadline().Add(time.Minute) }

	cutovers := 0
	g.OnCutover = func() { cutovers++ }

	if d := g.Evaluate(context.Background(), model.Bar{Close: 100}); d.Kind != model.NoAction {
		t.Fatalf("expected NoAction after cutover, got %s", d.Kind)
	}

	// Even if the clock were rolled back, the cutover stays latched.
	g.now = func() time.Time { return cut.Deadline().Add(-time.Hour) }
	if d := g.Evaluate(context.Background(), model.Bar{Close: 100}); d.Kind != model.NoAction {
		t.Fatalf("expected cutover to latch, got %s", d.Kind)
	}

	g.now = func() time.Time { return cut.Deadline().Add(time.Hour) }
	if d := g.Evaluate(context.Background(), model.Bar{Close: 100}); d.Kind != model.NoAction {
		t.Fatalf("expected NoAction on later evaluations, got %s", d.Kind)
	}
	if cutovers != 1 {
		t.Errorf("cutover hook fired %d times, want 1", cutovers)
	}
}

func TestGuard_CutoverDoesNotBlockForcedExit(t *testing.T) {
	cut, err := session.Parse("2026-08-28 16:00", "America/New_York")
	if err != nil {
		t.Fatalf("parse cutover: %v", err)
	}
	broker := &fakeBroker{
		equity: 1000,
		positions: []model.PositionState{{
			Side: model.SideBuy, Quantity: 1, UnrealizedPnL: 40,
		}},
	}
	g := NewGuard(broker, &stubStrategy{}, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, cut)
	g.now = func() time.Time { return cut.Deadline().Add(time.Hour) }

	if d := g.Evaluate(context.Background(), model.Bar{Close: 100}); d.Kind != model.Exit {
		t.Fatalf("expected forced exit after cutover with open position, got %s", d.Kind)
	}
}

func TestGuard_PollFailureMeansNoChangeThisCycle(t *testing.T) {
	broker := &fakeBroker{equityErr: errors.New("timeout")}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind != model.NoAction {
		t.Fatalf("expected NoAction on equity poll failure, got %s", d.Kind)
	}
	if strat.observed != 1 {
		t.Errorf("window not appended on poll failure: %d", strat.observed)
	}
}

func TestGuard_PushedBalanceBacksUpFailedPoll(t *testing.T) {
	broker := &fakeBroker{equityErr: errors.New("timeout")}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	g.ObserveEquity(1000)
	d := g.Evaluate(context.Background(), model.Bar{Close: 100})
	if d.Kind != model.Enter {
		t.Fatalf("expected pushed balance to cover failed poll, got %s (%s)", d.Kind, d.Reason)
	}
}

func TestGuard_PositionPollFailure(t *testing.T) {
	broker := &fakeBroker{equity: 1000, posErr: errors.New("502")}
	strat := &stubStrategy{decision: enterBuy()}
	g := NewGuard(broker, strat, Limits{EquityFloor: 650, ProfitTarget: 25, StopLoss: -25}, session.Cutover{})

	if d := g.Evaluate(context.Background(), model.Bar{Close: 100}); d.Kind != model.NoAction {
		t.Fatalf("expected NoAction on position poll failure, got %s", d.Kind)
	}
}
