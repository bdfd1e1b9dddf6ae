package indicator

import (
	"math"

	"breakout-systemv1/internal/model"
)

// Volatility calculates the rolling standard deviation of close-to-close
// percentage changes, expressed as a percentage. A circular buffer of
// returns keeps the update O(1) via running sum and sum-of-squares.
type Volatility struct {
	window    int
	buf       []float64 // pct returns
	idx       int
	count     int // returns received (one fewer than candles)
	prevClose float64
	seeded    bool
	sum       float64
	sumSq     float64
	current   float64
}

// NewVolatility creates a volatility indicator over the given return window.
func NewVolatility(window int) *Volatility {
	return &Volatility{
		window: window,
		buf:    make([]float64, window),
	}
}

func (v *Volatility) Name() string { return "VOL_" + model.Itoa(v.window) }

func (v *Volatility) Update(candle model.Candle) {
	if !v.seeded {
		v.prevClose = candle.Close
		v.seeded = true
		return
	}

	ret := 0.0
	if v.prevClose != 0 {
		ret = (candle.Close - v.prevClose) / v.prevClose * 100.0
	}
	v.prevClose = candle.Close

	if v.count >= v.window {
		old := v.buf[v.idx]
		v.sum -= old
		v.sumSq -= old * old
	}

	v.buf[v.idx] = ret
	v.sum += ret
	v.sumSq += ret * ret
	v.idx = (v.idx + 1) % v.window
	v.count++

	if v.count >= v.window {
		n := float64(v.window)
		mean := v.sum / n
		variance := v.sumSq/n - mean*mean
		if variance < 0 {
			variance = 0 // float ordering artifacts
		}
		v.current = math.Sqrt(variance)
	}
}

func (v *Volatility) Value() float64 { return v.current }
func (v *Volatility) Ready() bool    { return v.count >= v.window }
