package redis

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	if b.CurrentState() != StateClosed {
		t.Errorf("expected closed, got %v", b.CurrentState())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}

	if b.CurrentState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %v", b.CurrentState())
	}

	// Calls are rejected immediately while open
	if err := b.Do(func() error { return nil }); err != ErrOpen {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })
	b.Do(func() error { return nil })
	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })

	if b.CurrentState() != StateClosed {
		t.Errorf("expected closed, non-consecutive failures must not trip, got %v", b.CurrentState())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}
	if b.CurrentState() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(60 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if b.CurrentState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", b.CurrentState())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}
	time.Sleep(60 * time.Millisecond)

	if err := b.Do(func() error { return errFail }); err != errFail {
		t.Fatalf("expected errFail from probe, got %v", err)
	}
	if b.CurrentState() != StateOpen {
		t.Errorf("expected open after failed probe, got %v", b.CurrentState())
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	b := NewBreaker(1, 50*time.Millisecond)

	var transitions []string
	b.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	b.Do(func() error { return errors.New("fail") })
	time.Sleep(60 * time.Millisecond)
	b.Do(func() error { return nil })

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
