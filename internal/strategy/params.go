package strategy

import (
	"fmt"

	"breakout-systemv1/internal/model"
)

// Params holds every tunable of the signal generator and position manager.
// A Params value is validated once at startup and then passed read-only —
// never mutated mid-run.
type Params struct {
	// Entry rules
	BreakoutLookback     int     `json:"breakout_lookback"`      // extrema sub-window (candles)
	BreakoutThresholdPct float64 `json:"breakout_threshold_pct"` // min % excursion past support/resistance
	MinConfidence        float64 `json:"min_confidence"`         // signals below this downgrade to WAIT
	MinVolumeRatio       float64 `json:"min_volume_ratio"`       // volume confirmation floor

	// Filters
	UseTrendFilter      bool    `json:"use_trend_filter"`
	UseVolumeFilter     bool    `json:"use_volume_filter"`
	UseVolatilityFilter bool    `json:"use_volatility_filter"`
	VolatilityMinPct    float64 `json:"volatility_min_pct"` // healthy band lower bound
	VolatilityMaxPct    float64 `json:"volatility_max_pct"` // healthy band upper bound

	// RSI
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	RSIExitHigh   float64 `json:"rsi_exit_high"` // LONG exit advisory threshold
	RSIExitLow    float64 `json:"rsi_exit_low"`  // SHORT exit advisory threshold

	// Risk / position management
	PositionSize        float64 `json:"position_size"`     // base units per trade
	ATRMultiplier       float64 `json:"atr_multiplier"`    // stop distance in ATR units
	MinStopPct          float64 `json:"min_stop_pct"`      // stop distance floor, % of entry
	RiskRewardRatio     float64 `json:"risk_reward_ratio"` // TP distance = stop distance × ratio
	TrailingStopEnabled bool    `json:"trailing_stop_enabled"`
	TrailingATRMult     float64 `json:"trailing_stop_atr_multiplier"`
	TrailingActivatePct float64 `json:"trailing_activation_pct"` // unrealized gain % that arms the trail
	SlippagePct         float64 `json:"slippage_pct"`            // fraction of gross profit forfeited on exit
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		BreakoutLookback:     5,
		BreakoutThresholdPct: 0.5,
		MinConfidence:        3.0,
		MinVolumeRatio:       1.5,

		UseTrendFilter:      true,
		UseVolumeFilter:     true,
		UseVolatilityFilter: true,
		VolatilityMinPct:    0.5,
		VolatilityMaxPct:    3.0,

		RSIOversold:   35,
		RSIOverbought: 65,
		RSIExitHigh:   60,
		RSIExitLow:    40,

		PositionSize:        1.0,
		ATRMultiplier:       2.0,
		MinStopPct:          2.0,
		RiskRewardRatio:     2.0,
		TrailingStopEnabled: true,
		TrailingATRMult:     1.5,
		TrailingActivatePct: 1.0,
		SlippagePct:         0.03,
	}
}

// Validate checks the parameter set. Any violation is fatal at startup,
// before a single candle is processed.
func (p *Params) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", model.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if p.BreakoutLookback <= 0 {
		return fail("breakout_lookback must be positive, got %d", p.BreakoutLookback)
	}
	if p.BreakoutThresholdPct <= 0 {
		return fail("breakout_threshold_pct must be positive, got %g", p.BreakoutThresholdPct)
	}
	if p.MinConfidence < 0 || p.MinConfidence > 10 {
		return fail("min_confidence must be in [0,10], got %g", p.MinConfidence)
	}
	if p.MinVolumeRatio < 0 {
		return fail("min_volume_ratio must be non-negative, got %g", p.MinVolumeRatio)
	}
	if p.UseVolatilityFilter && (p.VolatilityMinPct < 0 || p.VolatilityMinPct >= p.VolatilityMaxPct) {
		return fail("volatility band [%g, %g] is not a valid range", p.VolatilityMinPct, p.VolatilityMaxPct)
	}
	if p.RSIOversold <= 0 || p.RSIOverbought >= 100 || p.RSIOversold >= p.RSIOverbought {
		return fail("rsi thresholds oversold=%g overbought=%g out of order", p.RSIOversold, p.RSIOverbought)
	}
	if p.RSIExitLow >= p.RSIExitHigh {
		return fail("rsi exit thresholds low=%g high=%g out of order", p.RSIExitLow, p.RSIExitHigh)
	}
	if p.PositionSize <= 0 {
		return fail("position_size must be positive, got %g", p.PositionSize)
	}
	if p.ATRMultiplier <= 0 {
		return fail("atr_multiplier must be positive, got %g", p.ATRMultiplier)
	}
	if p.MinStopPct <= 0 {
		return fail("min_stop_pct must be positive, got %g", p.MinStopPct)
	}
	if p.RiskRewardRatio <= 0 {
		return fail("risk_reward_ratio must be positive, got %g", p.RiskRewardRatio)
	}
	if p.TrailingStopEnabled {
		if p.TrailingATRMult <= 0 {
			return fail("trailing_stop_atr_multiplier must be positive, got %g", p.TrailingATRMult)
		}
		if p.TrailingActivatePct <= 0 {
			return fail("trailing_activation_pct must be positive, got %g", p.TrailingActivatePct)
		}
	}
	if p.SlippagePct < 0 || p.SlippagePct >= 1 {
		return fail("slippage_pct must be in [0,1), got %g", p.SlippagePct)
	}
	return nil
}
