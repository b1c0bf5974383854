package redis

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed   State = 0 // normal operation, writes pass through
	StateOpen     State = 1 // tripped, writes rejected immediately
	StateHalfOpen State = 2 // cooldown elapsed, one probe write allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker rejects a call.
var ErrOpen = errors.New("redis breaker open")

// Breaker trips after maxFailures consecutive failures and rejects calls
// for the cooldown period. After the cooldown, one probe call is let
// through. A successful probe closes the breaker, a failed probe reopens
// it. This keeps a Redis outage from stalling the bar pipeline: the
// decision loop and the SQLite archive keep running while publishes are
// shed.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time

	OnStateChange func(from, to State) // optional, called on transitions
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       StateClosed,
	}
}

// Do runs fn through the breaker. Returns ErrOpen without calling fn when
// the breaker is open and the cooldown has not elapsed.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.lastFailure) > b.cooldown {
			b.transition(StateHalfOpen)
		} else {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.transition(StateOpen)
		}
		return err
	}

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
	return nil
}

// CurrentState returns the breaker state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
