package strategy

import (
	"testing"

	"meanrev-traderv1/internal/model"
)

func barAt(close float64) model.Bar {
	return model.Bar{Close: close, Open: close, High: close, Low: close}
}

func TestMeanReversion_WarmupEmitsNoAction(t *testing.T) {
	s := NewMeanReversion(120, 0.00075, 1)

	for i := 0; i < 119; i++ {
		s.Observe(barAt(100))
		if d := s.Evaluate(); d.Kind != model.NoAction {
			t.Fatalf("bar %d: expected NoAction during warm-up, got %s", i, d.Kind)
		}
	}
}

func TestMeanReversion_EntersOnUndershoot(t *testing.T) {
	s := NewMeanReversion(120, 0.00075, 2)

	// 119 closes holding the mean near 100, then an undershooting close.
	// mean ≈ 100.0, threshold = 0.075, 99.9 < 99.925 → Enter BUY.
	for i := 0; i < 120; i++ {
		s.Observe(barAt(100))
	}
	s.Observe(barAt(99.9))

	d := s.Evaluate()
	if d.Kind != model.Enter {
		t.Fatalf("expected Enter, got %s (%s)", d.Kind, d.Reason)
	}
	if d.Side != model.SideBuy {
		t.Errorf("expected BUY entry, got %s", d.Side)
	}
	if d.Quantity != 2 {
		t.Errorf("expected configured quantity 2, got %d", d.Quantity)
	}
}

func TestMeanReversion_NoEntryInsideThreshold(t *testing.T) {
	s := NewMeanReversion(120, 0.00075, 1)

	for i := 0; i < 120; i++ {
		s.Observe(barAt(100))
	}
	// 99.93 is inside the band (mean−threshold ≈ 99.925).
	s.Observe(barAt(99.93))

	if d := s.Evaluate(); d.Kind != model.NoAction {
		t.Fatalf("expected NoAction inside threshold, got %s (%s)", d.Kind, d.Reason)
	}
}

func TestMeanReversion_NeverSellsOnOvershoot(t *testing.T) {
	s := NewMeanReversion(120, 0.00075, 1)

	for i := 0; i < 120; i++ {
		s.Observe(barAt(100))
	}
	s.Observe(barAt(101)) // overshoot far above the mean

	if d := s.Evaluate(); d.Kind != model.NoAction {
		t.Fatalf("one-sided rule emitted %s on overshoot", d.Kind)
	}
}

func TestMeanReversion_WindowEvictsOldest(t *testing.T) {
	s := NewMeanReversion(3, 0.00075, 1)

	for _, c := range []float64{50, 100, 100, 100} {
		s.Observe(barAt(c))
	}

	// If 50 were still in the window the mean would sit far below 100 and
	// a close of 99 would not undershoot it.
	s.Observe(barAt(99))
	if d := s.Evaluate(); d.Kind != model.Enter {
		t.Fatalf("expected Enter after oldest close evicted, got %s (%s)", d.Kind, d.Reason)
	}
}
