// Package window provides a fixed-capacity rolling window of candles backed
// by a circular buffer. The strategy layer uses it for local-extrema
// (support/resistance) detection and slope measurements without re-slicing
// or reallocating per bar.
package window

import "breakout-systemv1/internal/model"

// Window retains the most recent N candles in arrival order.
// Single-goroutine usage — no locks needed.
type Window struct {
	buf   []model.Candle
	head  int // next write position
	count int // total candles pushed, saturates at capacity for indexing
}

// New creates a window with the given capacity. Minimum capacity is 2.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Push appends a candle, evicting the oldest when full.
func (w *Window) Push(c model.Candle) {
	w.buf[w.head] = c
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Len returns the number of candles currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap() candles.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// At returns the candle at index i, where 0 is the oldest held candle and
// Len()-1 is the newest. Panics on out-of-range i, matching slice semantics.
func (w *Window) At(i int) model.Candle {
	if i < 0 || i >= w.count {
		panic("window: index out of range")
	}
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	return w.buf[(start+i)%len(w.buf)]
}

// Last returns the newest candle. Callers must ensure Len() > 0.
func (w *Window) Last() model.Candle {
	return w.At(w.count - 1)
}

// HighestHigh returns the maximum high over the n candles immediately
// preceding the newest one (the newest is excluded so that a close can be
// compared against prior resistance). Returns ok=false when fewer than n+1
// candles are held.
func (w *Window) HighestHigh(n int) (high float64, ok bool) {
	if n <= 0 || w.count < n+1 {
		return 0, false
	}
	high = w.At(w.count - 1 - n).High
	for i := w.count - n; i < w.count-1; i++ {
		if h := w.At(i).High; h > high {
			high = h
		}
	}
	return high, true
}

// LowestLow returns the minimum low over the n candles immediately preceding
// the newest one. Returns ok=false when fewer than n+1 candles are held.
func (w *Window) LowestLow(n int) (low float64, ok bool) {
	if n <= 0 || w.count < n+1 {
		return 0, false
	}
	low = w.At(w.count - 1 - n).Low
	for i := w.count - n; i < w.count-1; i++ {
		if l := w.At(i).Low; l < low {
			low = l
		}
	}
	return low, true
}

// CloseDelta returns the close-to-close change over the last n bars:
// newest close minus the close n bars back. ok=false with insufficient data.
func (w *Window) CloseDelta(n int) (delta float64, ok bool) {
	if n <= 0 || w.count < n+1 {
		return 0, false
	}
	return w.At(w.count-1).Close - w.At(w.count-1-n).Close, true
}
