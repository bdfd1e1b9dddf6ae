package strategy

import "breakout-systemv1/internal/model"

// Factor weights. They sum to 10, so a signal corroborated fully by every
// factor scores the maximum confidence. No single factor can contribute
// more than its weight.
const (
	weightBreakout   = 3.0
	weightVolume     = 2.5
	weightTrend      = 2.0
	weightRSI        = 1.5
	weightVolatility = 1.0
)

// Factors holds the independently evaluated factor scores, each in [0,1].
type Factors struct {
	BreakoutStrength float64 // distance past the threshold, capped
	VolumeStrength   float64 // confirmation beyond the minimum ratio
	TrendAlignment   float64 // signal direction vs prevailing trend
	RSIAlignment     float64 // oversold/overbought corroboration
	VolFavorability  float64 // position inside the healthy volatility band
}

// Score collapses the factors into a single confidence value in [0,10].
// Pure and deterministic given identical inputs.
func (f Factors) Score() float64 {
	s := f.BreakoutStrength*weightBreakout +
		f.VolumeStrength*weightVolume +
		f.TrendAlignment*weightTrend +
		f.RSIAlignment*weightRSI +
		f.VolFavorability*weightVolatility
	return clamp01x10(s)
}

func clamp01x10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// breakoutStrength scores the excursion beyond the breakout threshold.
// excessPct is how far (in %) the close traded past the threshold level;
// one full threshold width past it scores 1.0.
func breakoutStrength(excessPct, thresholdPct float64) float64 {
	return clamp01(excessPct / thresholdPct)
}

// volumeStrength scores volume confirmation beyond the required minimum.
// Ratio at the minimum scores 0; one full minimum above it scores 1.0.
func volumeStrength(ratio, minRatio float64) float64 {
	if minRatio <= 0 {
		return 1
	}
	return clamp01((ratio - minRatio) / minRatio)
}

// trendAlignment scores direction agreement with the prevailing trend.
func trendAlignment(action model.Action, trend model.Trend) float64 {
	switch {
	case action == model.ActionLong && trend == model.TrendUp,
		action == model.ActionShort && trend == model.TrendDown:
		return 1
	case trend == model.TrendSideways:
		return 0.5
	default:
		return 0
	}
}

// rsiAlignment scores momentum corroboration. For LONG, the deeper below
// the overbought threshold the better (oversold is ideal); symmetric for
// SHORT. A secondary corroborating factor, not a gate.
func rsiAlignment(action model.Action, rsi, oversold, overbought float64) float64 {
	span := overbought - oversold
	if span <= 0 {
		return 0
	}
	switch action {
	case model.ActionLong:
		return clamp01((overbought - rsi) / span)
	case model.ActionShort:
		return clamp01((rsi - oversold) / span)
	default:
		return 0
	}
}

// volFavorability scores where volatility sits inside the healthy band:
// 1.0 at the center, tapering to 0 at either edge, 0 outside.
func volFavorability(volPct, minPct, maxPct float64) float64 {
	if volPct < minPct || volPct > maxPct {
		return 0
	}
	center := (minPct + maxPct) / 2
	half := (maxPct - minPct) / 2
	if half <= 0 {
		return 0
	}
	dist := volPct - center
	if dist < 0 {
		dist = -dist
	}
	return clamp01(1 - dist/half)
}
