// Package strategy provides rule-based signal generation over candle windows.
//
// A Strategy receives the rolling candle window, the latest indicator
// snapshot, and the current position state, and emits exactly one Signal per
// bar (LONG/SHORT/CLOSE/WAIT with a confidence score). Strategies are pure
// with respect to their inputs: identical inputs yield identical signals.
package strategy

import (
	"fmt"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/window"
)

// PositionState is the read-only view of the open position a strategy sees.
type PositionState struct {
	Open       bool
	Side       model.Side
	Profitable bool // unrealized PnL > 0 at the latest close
}

// Strategy is the interface all signal generators implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// GenerateSignal evaluates one bar. The window's newest candle is the
	// bar being evaluated; snap is its indicator snapshot.
	GenerateSignal(w *window.Window, snap model.IndicatorSnapshot, pos PositionState) model.Signal
}

// New creates a strategy by name. Unknown names are a configuration error.
func New(name string, params Params) (Strategy, error) {
	switch name {
	case "breakout", "":
		return NewBreakout(params), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", model.ErrInvalidConfig, name)
	}
}
