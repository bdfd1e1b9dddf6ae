package strategy

import (
	"testing"
	"time"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/window"
)

var testTS = time.Unix(1700000000, 0).UTC()

// buildWindow creates a window whose prior candles establish resistance=high
// and support=low, followed by one live candle closing at close.
func buildWindow(high, low, close float64) *window.Window {
	w := window.New(16)
	for i := 0; i < 6; i++ {
		w.Push(model.Candle{
			Symbol: "BTC-USDT", Exchange: "okx", TF: 60,
			TS:   testTS.Add(time.Duration(i) * time.Minute),
			Open: (high + low) / 2, High: high, Low: low, Close: (high + low) / 2,
			Volume: 100,
		})
	}
	w.Push(model.Candle{
		Symbol: "BTC-USDT", Exchange: "okx", TF: 60,
		TS:   testTS.Add(7 * time.Minute),
		Open: close, High: close + 1, Low: close - 1, Close: close,
		Volume: 250,
	})
	return w
}

func readySnap(rsi, volRatio, volPct float64, trend model.Trend) model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		Symbol: "BTC-USDT", Exchange: "okx", TS: testTS.Add(7 * time.Minute),
		Ready: true,
		RSI:   rsi, ATR: 1.5,
		SMAFast: 100, SMASlow: 100, EMAFast: 100,
		VolatilityPct: volPct, VolumeRatio: volRatio,
		Trend: trend,
	}
}

func TestBreakout_WaitDuringWarmup(t *testing.T) {
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 90, 120)
	sig := b.GenerateSignal(w, model.IndicatorSnapshot{Ready: false}, PositionState{})
	if sig.Action != model.ActionWait {
		t.Errorf("expected WAIT before warm-up, got %s", sig.Action)
	}
}

func TestBreakout_ConfirmedLong(t *testing.T) {
	// Resistance 100, threshold 0.5% → breakout level 100.5.
	// Close 100.6 breaks resistance by 0.6%; volume 2.0x, trend up, vol 1.2%.
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 100.6)
	sig := b.GenerateSignal(w, readySnap(55, 2.0, 1.2, model.TrendUp), PositionState{})
	if sig.Action != model.ActionLong {
		t.Fatalf("expected LONG, got %s (%s)", sig.Action, sig.Reason)
	}
	if sig.Confidence < DefaultParams().MinConfidence {
		t.Errorf("expected confidence >= %.1f, got %.2f", DefaultParams().MinConfidence, sig.Confidence)
	}
}

func TestBreakout_ConfirmedShort(t *testing.T) {
	// Support 95, threshold 0.5% → breakdown level 94.525.
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 94.0)
	sig := b.GenerateSignal(w, readySnap(45, 2.0, 1.2, model.TrendDown), PositionState{})
	if sig.Action != model.ActionShort {
		t.Fatalf("expected SHORT, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestBreakout_CounterTrendSuppressed(t *testing.T) {
	// Strong breakout with every confirmation except trend: must stay WAIT,
	// and must never flip to SHORT.
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 102)
	sig := b.GenerateSignal(w, readySnap(73, 2.0, 1.2, model.TrendDown), PositionState{})
	if sig.Action == model.ActionShort {
		t.Fatal("counter-trend breakout must not become SHORT")
	}
	if sig.Action != model.ActionWait {
		t.Errorf("expected WAIT for counter-trend breakout, got %s", sig.Action)
	}
}

func TestBreakout_RisingRSIBreakoutNeverShort(t *testing.T) {
	// RSI 73 after a fast rise with volume and up-trend: LONG or WAIT only.
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 101.5)
	sig := b.GenerateSignal(w, readySnap(73, 1.6, 1.2, model.TrendUp), PositionState{})
	if sig.Action == model.ActionShort {
		t.Fatalf("must not emit SHORT, got %s", sig.Reason)
	}
}

func TestBreakout_VolumeUnconfirmed(t *testing.T) {
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 101)
	sig := b.GenerateSignal(w, readySnap(55, 1.0, 1.2, model.TrendUp), PositionState{})
	if sig.Action != model.ActionWait {
		t.Errorf("expected WAIT on weak volume, got %s", sig.Action)
	}
}

func TestBreakout_VolumeFilterDisabled(t *testing.T) {
	params := DefaultParams()
	params.UseVolumeFilter = false
	b := NewBreakout(params)
	w := buildWindow(100, 95, 101)
	sig := b.GenerateSignal(w, readySnap(40, 1.0, 1.2, model.TrendUp), PositionState{})
	if sig.Action != model.ActionLong {
		t.Errorf("expected LONG with volume filter off, got %s (%s)", sig.Action, sig.Reason)
	}
}

func TestBreakout_VolatilityBand(t *testing.T) {
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 101)

	quiet := b.GenerateSignal(w, readySnap(55, 2.0, 0.2, model.TrendUp), PositionState{})
	if quiet.Action != model.ActionWait {
		t.Errorf("expected WAIT in too-quiet regime, got %s", quiet.Action)
	}

	violent := b.GenerateSignal(w, readySnap(55, 2.0, 5.0, model.TrendUp), PositionState{})
	if violent.Action != model.ActionWait {
		t.Errorf("expected WAIT in too-violent regime, got %s", violent.Action)
	}
}

func TestBreakout_TieResolvesToWait(t *testing.T) {
	// Degenerate candles where both conditions hold simultaneously.
	b := NewBreakout(DefaultParams())
	w := window.New(16)
	for i := 0; i < 6; i++ {
		w.Push(model.Candle{High: 10, Low: 100, Close: 50, Volume: 100,
			TS: testTS.Add(time.Duration(i) * time.Minute)})
	}
	w.Push(model.Candle{High: 51, Low: 49, Close: 50, Volume: 100,
		TS: testTS.Add(7 * time.Minute)})
	sig := b.GenerateSignal(w, readySnap(50, 2.0, 1.2, model.TrendSideways), PositionState{})
	if sig.Action != model.ActionWait {
		t.Errorf("simultaneous breakout+breakdown must resolve to WAIT, got %s", sig.Action)
	}
}

func TestBreakout_LowConfidenceDowngraded(t *testing.T) {
	params := DefaultParams()
	params.MinConfidence = 9.5
	b := NewBreakout(params)
	w := buildWindow(100, 95, 100.6)
	sig := b.GenerateSignal(w, readySnap(55, 2.0, 1.2, model.TrendUp), PositionState{})
	if sig.Action != model.ActionWait {
		t.Fatalf("expected downgrade to WAIT, got %s", sig.Action)
	}
	if sig.Confidence <= 0 {
		t.Error("downgraded signal should retain its computed confidence")
	}
}

func TestBreakout_RSIExitAdvisory(t *testing.T) {
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 101)

	long := PositionState{Open: true, Side: model.SideLong, Profitable: true}
	sig := b.GenerateSignal(w, readySnap(65, 2.0, 1.2, model.TrendUp), long)
	if sig.Action != model.ActionClose {
		t.Errorf("expected CLOSE for profitable LONG with rsi 65, got %s", sig.Action)
	}

	// Not profitable: hold.
	losing := PositionState{Open: true, Side: model.SideLong, Profitable: false}
	sig = b.GenerateSignal(w, readySnap(65, 2.0, 1.2, model.TrendUp), losing)
	if sig.Action != model.ActionWait {
		t.Errorf("expected WAIT for losing LONG, got %s", sig.Action)
	}

	short := PositionState{Open: true, Side: model.SideShort, Profitable: true}
	sig = b.GenerateSignal(w, readySnap(35, 2.0, 1.2, model.TrendDown), short)
	if sig.Action != model.ActionClose {
		t.Errorf("expected CLOSE for profitable SHORT with rsi 35, got %s", sig.Action)
	}
}

func TestBreakout_EntryIgnoredWhileOpen(t *testing.T) {
	b := NewBreakout(DefaultParams())
	w := buildWindow(100, 95, 102)
	pos := PositionState{Open: true, Side: model.SideShort, Profitable: false}
	sig := b.GenerateSignal(w, readySnap(50, 2.5, 1.5, model.TrendUp), pos)
	if sig.Actionable() {
		t.Errorf("no entry signal may be emitted while a position is open, got %s", sig.Action)
	}
}

func TestFactors_ScoreBounds(t *testing.T) {
	full := Factors{1, 1, 1, 1, 1}
	if got := full.Score(); got != 10 {
		t.Errorf("expected max score 10, got %.2f", got)
	}
	none := Factors{}
	if got := none.Score(); got != 0 {
		t.Errorf("expected zero score, got %.2f", got)
	}
}

func TestParams_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative min_volume_ratio", func(p *Params) { p.MinVolumeRatio = -1 }},
		{"zero risk_reward", func(p *Params) { p.RiskRewardRatio = 0 }},
		{"confidence out of range", func(p *Params) { p.MinConfidence = 11 }},
		{"inverted volatility band", func(p *Params) { p.VolatilityMinPct = 5; p.VolatilityMaxPct = 1 }},
		{"inverted rsi thresholds", func(p *Params) { p.RSIOversold = 70; p.RSIOverbought = 30 }},
		{"zero atr multiplier", func(p *Params) { p.ATRMultiplier = 0 }},
		{"slippage >= 1", func(p *Params) { p.SlippagePct = 1 }},
		{"zero position size", func(p *Params) { p.PositionSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	good := DefaultParams()
	if err := good.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
