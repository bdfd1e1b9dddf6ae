package indicator

import (
	"math"

	"breakout-systemv1/internal/model"
)

// ATR calculates Average True Range with Wilder-style (SMMA) smoothing.
// True range = max(high−low, |high−prevClose|, |low−prevClose|).
// The first candle has no previous close, so its TR is high−low.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR_" + model.Itoa(a.period) }

func (a *ATR) Update(candle model.Candle) {
	tr := candle.High - candle.Low
	if a.count > 0 {
		tr = math.Max(tr, math.Max(
			math.Abs(candle.High-a.prevClose),
			math.Abs(candle.Low-a.prevClose),
		))
	}
	a.prevClose = candle.Close
	a.count++

	if a.count <= a.period {
		// Accumulate for initial SMA seed
		a.sum += tr
		if a.count == a.period {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	// Wilder-style smoothing
	a.current = (a.current*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count >= a.period }
