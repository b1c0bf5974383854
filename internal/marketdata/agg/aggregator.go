// Package agg builds fixed-interval OHLCV bars from a stream of ticks.
//
// The aggregator is self-paced on the wall clock: once per interval it
// drains every tick queued since the previous cycle (never waiting for more
// ticks mid-cycle), folds the samples into the in-progress bar, and emits
// the bar when the clock rolls past the bucket boundary.
package agg

import (
	"context"
	"log"
	"time"

	"meanrev-traderv1/internal/model"
)

// Config configures the Aggregator.
type Config struct {
	Interval  time.Duration // bar interval, default 1s
	TradeOnly bool          // when true, quote ticks are ignored
}

// Aggregator folds ticks into one in-progress bar at a time. It runs in a
// single goroutine; none of its state is shared.
type Aggregator struct {
	interval  time.Duration
	tradeOnly bool

	bucket int64 // epoch-second start of the in-progress bucket

	// In-progress bar. open/high/low/close are only meaningful when filled
	// is true; lastClose survives bucket rollovers and flat resets.
	open, high, low, close float64
	volume                 float64
	filled                 bool
	lastClose              float64
	haveClose              bool

	// Optional metrics hooks
	OnBar        func()
	OnGapBar     func()
	OnDroppedBar func()
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Aggregator{
		interval:  cfg.Interval,
		tradeOnly: cfg.TradeOnly,
	}
}

// Run consumes ticks from tickCh and emits completed bars to barCh until ctx
// is cancelled. Each cycle is budgeted at exactly one interval: the loop
// sleeps only the remainder after processing, and proceeds immediately when
// processing overruns the budget (drift is absorbed, never corrected by a
// catch-up burst).
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, barCh chan<- model.Bar) {
	a.bucket = a.truncate(time.Now().Unix())

	for ctx.Err() == nil {
		cycleStart := time.Now()

		ticks := drain(tickCh)
		a.cycle(time.Now().Unix(), ticks, barCh)

		if remainder := a.interval - time.Since(cycleStart); remainder > 0 {
			if !sleepCtx(ctx, remainder) {
				return
			}
		}
	}
}

// cycle handles bucket rollover, then folds this cycle's ticks into the
// in-progress bar. Rollover comes first: by the time a cycle observes a new
// bucket, the drained ticks arrived after the old bucket closed and belong
// to the new one.
func (a *Aggregator) cycle(nowSec int64, ticks []model.Tick, barCh chan<- model.Bar) {
	if newBucket := a.truncate(nowSec); newBucket > a.bucket {
		a.rollover(newBucket, barCh)
	}

	for _, t := range ticks {
		price, size, ok := t.Sample(a.tradeOnly)
		if !ok {
			continue
		}
		if !a.filled {
			a.open = price
			a.high = price
			a.low = price
			a.filled = true
		} else {
			if price > a.high {
				a.high = price
			}
			if price < a.low {
				a.low = price
			}
		}
		a.close = price
		a.lastClose = price
		a.haveClose = true
		a.volume += size
	}
}

// rollover finalizes every bucket older than newBucket. The completed
// bucket's OHLCV is emitted as accumulated; a quiet completed bucket
// collapses to a flat bar at the previous close, so stale extrema never
// leak across buckets. Until a first close has been observed the bucket
// pointer just advances: a bucket with no close is never emitted, and
// gap-fill only runs between buckets that follow a known close.
func (a *Aggregator) rollover(newBucket int64, barCh chan<- model.Bar) {
	defer func() {
		a.bucket = newBucket
		a.filled = false
		a.volume = 0
	}()

	if !a.haveClose {
		return
	}

	if !a.filled {
		a.open = a.lastClose
		a.high = a.lastClose
		a.low = a.lastClose
		a.close = a.lastClose
		a.volume = 0
	}

	a.emit(model.Bar{
		IntervalStart: a.bucket,
		Open:          a.open,
		High:          a.high,
		Low:           a.low,
		Close:         a.close,
		Volume:        a.volume,
	}, barCh)

	// If processing overran more than one interval, the skipped buckets
	// still get flat bars: bars advance strictly, gaps are never silent.
	step := int64(a.interval / time.Second)
	if step < 1 {
		step = 1
	}
	for s := a.bucket + step; s < newBucket; s += step {
		a.emit(model.FlatBar(s, a.lastClose), barCh)
		if a.OnGapBar != nil {
			a.OnGapBar()
		}
	}
}

// emit sends a finalized bar to barCh. Non-blocking to keep the cadence.
func (a *Aggregator) emit(bar model.Bar, barCh chan<- model.Bar) {
	select {
	case barCh <- bar:
		if a.OnBar != nil {
			a.OnBar()
		}
	default:
		log.Printf("[agg] bar channel full, dropping bar t=%d", bar.IntervalStart)
		if a.OnDroppedBar != nil {
			a.OnDroppedBar()
		}
	}
}

// truncate aligns an epoch second down to the bucket grid.
func (a *Aggregator) truncate(sec int64) int64 {
	step := int64(a.interval / time.Second)
	if step <= 1 {
		return sec
	}
	return sec - sec%step
}

// drain empties tickCh without blocking.
func drain(tickCh <-chan model.Tick) []model.Tick {
	var ticks []model.Tick
	for {
		select {
		case t, ok := <-tickCh:
			if !ok {
				return ticks
			}
			ticks = append(ticks, t)
		default:
			return ticks
		}
	}
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
