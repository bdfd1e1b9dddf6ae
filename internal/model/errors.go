package model

import "errors"

// Sentinel errors for the simulation core. Callers match with errors.Is.
var (
	// ErrInvalidCandle marks malformed input data (bad OHLC ordering,
	// non-finite values, non-monotonic timestamps). Fatal for the run.
	ErrInvalidCandle = errors.New("invalid candle")

	// ErrInvalidConfig marks a configuration that fails validation.
	// Raised at startup, before any candle is processed.
	ErrInvalidConfig = errors.New("invalid configuration")
)
