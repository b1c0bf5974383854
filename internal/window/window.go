// Package window provides a fixed-capacity rolling window of closing prices
// with a running sum, used as the mean-reversion lookback. Single-owner:
// it is mutated only by the strategy on bar arrival and is not safe for
// concurrent use.
package window

// Window is a FIFO buffer of the most recent N closes.
type Window struct {
	buf   []float64
	head  int // index of the oldest entry
	count int
	sum   float64
}

// New creates a Window with the given capacity. Minimum capacity is 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a close, evicting the oldest entry when full.
func (w *Window) Push(close float64) {
	if w.count == len(w.buf) {
		w.sum -= w.buf[w.head]
		w.buf[w.head] = close
		w.head = (w.head + 1) % len(w.buf)
	} else {
		w.buf[(w.head+w.count)%len(w.buf)] = close
		w.count++
	}
	w.sum += close
}

// Full reports whether the window has reached capacity.
func (w *Window) Full() bool {
	return w.count == len(w.buf)
}

// Len returns the number of closes currently held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Mean returns the arithmetic mean of the held closes (0 when empty).
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Last returns the most recently pushed close (0 when empty).
func (w *Window) Last() float64 {
	if w.count == 0 {
		return 0
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)]
}

// Values returns the held closes oldest-first. Used by tests and display.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
