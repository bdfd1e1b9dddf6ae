package strategy

import (
	"fmt"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/window"
)

// Breakout implements a volume-confirmed support/resistance breakout
// strategy with trend, volatility, and RSI corroboration.
//
// Entry: close exceeds the highest high (resistance) of the lookback
// sub-window by more than the configured threshold, confirmed by volume.
// A symmetric breakdown against the lowest low (support) produces SHORT.
// Exit advisory: while a position is profitable, RSI crossing back through
// the soft exit threshold recommends CLOSE; the position manager holds
// final exit authority.
type Breakout struct {
	name   string
	params Params
}

// NewBreakout creates a Breakout strategy with the given parameters.
func NewBreakout(params Params) *Breakout {
	return &Breakout{name: "Breakout", params: params}
}

func (b *Breakout) Name() string { return b.name }

// GenerateSignal evaluates one bar and returns exactly one Signal.
func (b *Breakout) GenerateSignal(w *window.Window, snap model.IndicatorSnapshot, pos PositionState) model.Signal {
	if !snap.Ready {
		return b.wait(snap, "insufficient history (warm-up)")
	}

	if pos.Open {
		return b.exitAdvisory(snap, pos)
	}

	p := &b.params
	resistance, okR := w.HighestHigh(p.BreakoutLookback)
	support, okS := w.LowestLow(p.BreakoutLookback)
	if !okR || !okS {
		return b.wait(snap, "insufficient history (warm-up)")
	}

	close := w.Last().Close
	breakoutLevel := resistance * (1 + p.BreakoutThresholdPct/100)
	breakdownLevel := support * (1 - p.BreakoutThresholdPct/100)
	brokeOut := close > breakoutLevel
	brokeDown := close < breakdownLevel

	switch {
	case brokeOut && brokeDown:
		// Degenerate/flat data can satisfy both; resolve conservatively.
		return b.wait(snap, "ambiguous breakout and breakdown, no trade")
	case !brokeOut && !brokeDown:
		return b.wait(snap, "no breakout")
	}

	action := model.ActionLong
	level := resistance
	excessPct := (close - breakoutLevel) / breakoutLevel * 100
	if brokeDown {
		action = model.ActionShort
		level = support
		excessPct = (breakdownLevel - close) / breakdownLevel * 100
	}

	if p.UseVolumeFilter && snap.VolumeRatio < p.MinVolumeRatio {
		return b.wait(snap, fmt.Sprintf("%s unconfirmed: volume ratio %.2f < %.2f",
			action, snap.VolumeRatio, p.MinVolumeRatio))
	}

	if p.UseTrendFilter && trendAlignment(action, snap.Trend) == 0 {
		// Counter-trend breakouts are suppressed regardless of strength.
		return b.wait(snap, fmt.Sprintf("%s suppressed: against %s trend", action, snap.Trend))
	}

	if p.UseVolatilityFilter &&
		(snap.VolatilityPct < p.VolatilityMinPct || snap.VolatilityPct > p.VolatilityMaxPct) {
		return b.wait(snap, fmt.Sprintf("volatility %.2f%% outside healthy band [%.2f%%, %.2f%%]",
			snap.VolatilityPct, p.VolatilityMinPct, p.VolatilityMaxPct))
	}

	factors := Factors{
		BreakoutStrength: breakoutStrength(excessPct, p.BreakoutThresholdPct),
		VolumeStrength:   volumeStrength(snap.VolumeRatio, p.MinVolumeRatio),
		TrendAlignment:   trendAlignment(action, snap.Trend),
		RSIAlignment:     rsiAlignment(action, snap.RSI, p.RSIOversold, p.RSIOverbought),
		VolFavorability:  volFavorability(snap.VolatilityPct, p.VolatilityMinPct, p.VolatilityMaxPct),
	}
	confidence := factors.Score()

	reason := fmt.Sprintf("%s: close %.4f past level %.4f (+%.2f%% over threshold), volume %.2fx, trend %s, rsi %.1f",
		action, close, level, excessPct, snap.VolumeRatio, snap.Trend, snap.RSI)

	if confidence < p.MinConfidence {
		sig := b.wait(snap, fmt.Sprintf("downgraded (confidence %.2f < %.2f): %s",
			confidence, p.MinConfidence, reason))
		sig.Confidence = confidence
		return sig
	}

	return model.Signal{
		Strategy:   b.name,
		Symbol:     snap.Symbol,
		Exchange:   snap.Exchange,
		Action:     action,
		Confidence: confidence,
		Reason:     reason,
		ComputedAt: snap.TS,
	}
}

// exitAdvisory emits CLOSE when RSI crosses back through the softer exit
// threshold while the position is profitable. Advisory only — the position
// manager applies it after its own exit checks.
func (b *Breakout) exitAdvisory(snap model.IndicatorSnapshot, pos PositionState) model.Signal {
	p := &b.params
	if pos.Profitable {
		if pos.Side == model.SideLong && snap.RSI > p.RSIExitHigh {
			return model.Signal{
				Strategy:   b.name,
				Symbol:     snap.Symbol,
				Exchange:   snap.Exchange,
				Action:     model.ActionClose,
				Reason:     fmt.Sprintf("rsi %.1f > %.1f with profitable LONG", snap.RSI, p.RSIExitHigh),
				ComputedAt: snap.TS,
			}
		}
		if pos.Side == model.SideShort && snap.RSI < p.RSIExitLow {
			return model.Signal{
				Strategy:   b.name,
				Symbol:     snap.Symbol,
				Exchange:   snap.Exchange,
				Action:     model.ActionClose,
				Reason:     fmt.Sprintf("rsi %.1f < %.1f with profitable SHORT", snap.RSI, p.RSIExitLow),
				ComputedAt: snap.TS,
			}
		}
	}
	return b.wait(snap, "position open, holding")
}

func (b *Breakout) wait(snap model.IndicatorSnapshot, reason string) model.Signal {
	return model.Signal{
		Strategy:   b.name,
		Symbol:     snap.Symbol,
		Exchange:   snap.Exchange,
		Action:     model.ActionWait,
		Reason:     reason,
		ComputedAt: snap.TS,
	}
}
