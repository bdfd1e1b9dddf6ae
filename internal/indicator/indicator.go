// Package indicator provides streaming technical indicator calculations over
// candle data.
//
// All indicators implement the Indicator interface, consuming candles in
// timestamp order and producing float64 values in O(1) per update — no
// history scans. Values are undefined (not zero) until Ready reports true.
package indicator

import "breakout-systemv1/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_50", "RSI_14").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Undefined until Ready.
	Value() float64

	// Ready returns true once enough data has been accumulated.
	Ready() bool
}
