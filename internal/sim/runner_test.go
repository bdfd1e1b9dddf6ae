package sim

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"testing"
	"time"

	"breakout-systemv1/internal/indicator"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func mkCandle(i int, o, h, l, c, v float64) model.Candle {
	return model.Candle{
		Symbol:   "BTCUSDT",
		Exchange: "BINANCE",
		TF:       60,
		TS:       t0.Add(time.Duration(i) * time.Minute),
		Open:     o, High: h, Low: l, Close: c, Volume: v,
	}
}

// breakoutSeries builds a deterministic series: 55 oscillating warm-up bars
// around 100, a clean breakout bar, then flat bars at the entry price so the
// position survives until the end of data.
func breakoutSeries() []model.Candle {
	var candles []model.Candle
	for i := 0; i < 55; i++ {
		if i%2 == 0 {
			candles = append(candles, mkCandle(i, 99.8, 100.5, 99.5, 100.2, 1000))
		} else {
			candles = append(candles, mkCandle(i, 100.2, 100.5, 99.5, 99.8, 1000))
		}
	}
	// Breakout: close 101.5 clears the prior 5-bar high (100.5) by well
	// over the 0.5% threshold, on expanded volume.
	candles = append(candles, mkCandle(55, 100.2, 101.6, 100.1, 101.5, 3000))
	// Flat bars at the entry price: no stop, TP, trail, or RSI exit fires.
	for i := 56; i < 70; i++ {
		candles = append(candles, mkCandle(i, 101.5, 101.55, 101.45, 101.5, 1000))
	}
	return candles
}

// laxParams disables filters so a single engineered breakout reliably
// produces an entry.
func laxParams() strategy.Params {
	p := strategy.DefaultParams()
	p.UseTrendFilter = false
	p.UseVolumeFilter = false
	p.UseVolatilityFilter = false
	p.MinConfidence = 0
	p.RSIExitHigh = 99 // keep the advisory exit out of the way
	return p
}

func newTestRunner(t *testing.T, p strategy.Params) *Runner {
	t.Helper()
	r, err := NewRunner(Config{
		InitialBalance: 10000,
		Params:         p,
		Indicators:     indicator.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestRun_EntryAtNextBarOpen(t *testing.T) {
	r := newTestRunner(t, laxParams())
	res, err := r.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	trade := res.Trades[0]

	// Signal on bar 55 → fill at bar 56's open, never at the signal
	// bar's close.
	if trade.EntryPrice != 101.5 {
		t.Errorf("entry price = %v, want 101.5 (next bar open)", trade.EntryPrice)
	}
	wantOpen := t0.Add(56 * time.Minute)
	if !trade.OpenedAt.Equal(wantOpen) {
		t.Errorf("opened at %v, want %v", trade.OpenedAt, wantOpen)
	}
	if trade.Side != model.SideLong {
		t.Errorf("side = %v, want LONG", trade.Side)
	}
}

func TestRun_ForcedCloseAtEndOfData(t *testing.T) {
	r := newTestRunner(t, laxParams())
	res, err := r.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	trade := res.Trades[0]
	if trade.Reason != model.CloseForced {
		t.Errorf("close reason = %v, want FORCED_CLOSE", trade.Reason)
	}
	// Closed at the last candle's close price.
	if trade.ExitPrice != 101.5 {
		t.Errorf("exit price = %v, want 101.5", trade.ExitPrice)
	}
	if len(res.Equity) != 1 {
		t.Fatalf("expected 1 equity point, got %d", len(res.Equity))
	}
	if res.Equity[0].TradeN != 1 {
		t.Errorf("equity trade_n = %d, want 1", res.Equity[0].TradeN)
	}
	if res.Equity[0].Balance != 10000+trade.PnLNet {
		t.Errorf("equity balance = %v, want %v", res.Equity[0].Balance, 10000+trade.PnLNet)
	}
}

func TestRun_Deterministic(t *testing.T) {
	candles := breakoutSeries()

	run := func() []byte {
		r := newTestRunner(t, laxParams())
		res, err := r.Run(context.Background(), candles)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		data, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data
	}

	a := run()
	b := run()
	if string(a) != string(b) {
		t.Error("two runs over identical input produced different results")
	}
}

func TestRun_AuditCoversEveryBar(t *testing.T) {
	candles := breakoutSeries()
	r := newTestRunner(t, laxParams())
	res, err := r.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Audit) != len(candles) {
		t.Fatalf("audit has %d records for %d candles", len(res.Audit), len(candles))
	}
	for i := 1; i < len(res.Audit); i++ {
		if !res.Audit[i].TS.After(res.Audit[i-1].TS) {
			t.Fatalf("audit records out of order at index %d", i)
		}
	}
}

func TestRun_SkippedBarManifest(t *testing.T) {
	candles := breakoutSeries()
	// Degrade a bar after the entry: NaN close. The bar is skipped for
	// signal purposes but the run continues and the position survives.
	candles[60].Close = math.NaN()

	r := newTestRunner(t, laxParams())
	res, err := r.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Skipped) != 1 {
		t.Fatalf("expected 1 skipped bar, got %d", len(res.Skipped))
	}
	if !res.Skipped[0].TS.Equal(candles[60].TS) {
		t.Errorf("skipped ts = %v, want %v", res.Skipped[0].TS, candles[60].TS)
	}
	if res.Summary.SkippedBars != 1 {
		t.Errorf("summary skipped bars = %d, want 1", res.Summary.SkippedBars)
	}

	// The skipped bar still appears in the audit trail, marked as skipped.
	found := false
	for _, rec := range res.Audit {
		if rec.TS.Equal(candles[60].TS) {
			if !rec.Skipped {
				t.Error("degraded bar's audit record not marked skipped")
			}
			found = true
		}
	}
	if !found {
		t.Error("degraded bar missing from audit trail")
	}

	// Position still force-closed at the last valid candle.
	if len(res.Trades) != 1 || res.Trades[0].Reason != model.CloseForced {
		t.Fatalf("expected 1 forced-close trade, got %+v", res.Trades)
	}
}

func TestRun_NonMonotonicTimestampFatal(t *testing.T) {
	candles := breakoutSeries()[:10]
	candles[5].TS = candles[4].TS // duplicate timestamp

	r := newTestRunner(t, laxParams())
	_, err := r.Run(context.Background(), candles)
	if !errors.Is(err, model.ErrInvalidCandle) {
		t.Fatalf("expected ErrInvalidCandle, got %v", err)
	}
}

func TestRun_StructuralViolationFatal(t *testing.T) {
	candles := breakoutSeries()[:10]
	candles[7].High = candles[7].Low - 1 // high < low

	r := newTestRunner(t, laxParams())
	_, err := r.Run(context.Background(), candles)
	if !errors.Is(err, model.ErrInvalidCandle) {
		t.Fatalf("expected ErrInvalidCandle, got %v", err)
	}
}

// randomWalkSeries builds a valid, seeded random-walk candle series. The
// walk drifts and spikes enough to trigger entries and every exit path.
func randomWalkSeries(seed int64, n int) []model.Candle {
	rng := rand.New(rand.NewSource(seed))
	candles := make([]model.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		move := (rng.Float64() - 0.48) * 2.5 // slight upward drift
		close := open + move
		if close <= 1 {
			close = 1
		}
		high := math.Max(open, close) + rng.Float64()*0.8
		low := math.Min(open, close) - rng.Float64()*0.8
		if low <= 0.5 {
			low = 0.5
		}
		volume := 500 + rng.Float64()*2500
		candles = append(candles, mkCandle(i, open, high, low, close, volume))
		price = close
	}
	return candles
}

func TestRun_AtMostOnePositionOpen(t *testing.T) {
	// Property check over seeded random walks: whatever the price path,
	// trades never overlap in time — each opens at or after the previous
	// close — and every ledger entry is internally consistent.
	totalTrades := 0
	for seed := int64(1); seed <= 30; seed++ {
		r := newTestRunner(t, laxParams())
		res, err := r.Run(context.Background(), randomWalkSeries(seed, 400))
		if err != nil {
			t.Fatalf("seed %d: Run: %v", seed, err)
		}
		totalTrades += len(res.Trades)

		for i, tr := range res.Trades {
			if tr.ClosedAt.Before(tr.OpenedAt) {
				t.Fatalf("seed %d: trade %d closed before it opened", seed, i)
			}
			if i > 0 && tr.OpenedAt.Before(res.Trades[i-1].ClosedAt) {
				t.Fatalf("seed %d: trade %d opened before trade %d closed", seed, i, i-1)
			}
			// Slippage is only ever taken out of gains.
			if tr.PnLGross > 0 && tr.PnLNet >= tr.PnLGross {
				t.Fatalf("seed %d: trade %d gain not slipped: gross=%v net=%v", seed, i, tr.PnLGross, tr.PnLNet)
			}
			if tr.PnLGross <= 0 && tr.PnLNet != tr.PnLGross {
				t.Fatalf("seed %d: trade %d loss was slipped: gross=%v net=%v", seed, i, tr.PnLGross, tr.PnLNet)
			}
		}
	}
	// The walks must actually exercise the invariant.
	if totalTrades < 30 {
		t.Fatalf("random walks produced only %d trades, generator too tame", totalTrades)
	}
}

func TestRun_AbortedRunLeaksNoFeeder(t *testing.T) {
	candles := breakoutSeries()[:10]
	candles[5].TS = candles[4].TS // fatal mid-series

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		r := newTestRunner(t, laxParams())
		if _, err := r.Run(context.Background(), candles); !errors.Is(err, model.ErrInvalidCandle) {
			t.Fatalf("expected ErrInvalidCandle, got %v", err)
		}
	}
	// Give cancelled feeders a moment to unwind.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines grew from %d to %d after aborted runs", before, runtime.NumGoroutine())
}

func TestNewRunner_RejectsBadConfig(t *testing.T) {
	p := strategy.DefaultParams()
	p.ATRMultiplier = -1
	_, err := NewRunner(Config{InitialBalance: 1000, Params: p, Indicators: indicator.DefaultConfig()})
	if !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	_, err = NewRunner(Config{InitialBalance: -5, Params: strategy.DefaultParams(), Indicators: indicator.DefaultConfig()})
	if !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for negative balance, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	trades := []model.Trade{
		{PnLGross: 12, PnLNet: 10, Reason: model.CloseTakeProfit,
			OpenedAt: t0, ClosedAt: t0.Add(10 * time.Minute)},
		{PnLGross: -5, PnLNet: -5, Reason: model.CloseStopLoss,
			OpenedAt: t0.Add(20 * time.Minute), ClosedAt: t0.Add(50 * time.Minute)},
	}

	s := Summarize(100, 105, trades, nil)

	if s.TotalTrades != 2 || s.Wins != 1 || s.Losses != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", s.WinRate)
	}
	if s.NetPnL != 5 || s.GrossPnL != 7 {
		t.Errorf("pnl net=%v gross=%v, want 5/7", s.NetPnL, s.GrossPnL)
	}
	if s.ByReason[model.CloseTakeProfit] != 1 || s.ByReason[model.CloseStopLoss] != 1 {
		t.Errorf("by-reason counts wrong: %v", s.ByReason)
	}
	if s.AvgHold != 20*time.Minute {
		t.Errorf("avg hold = %v, want 20m", s.AvgHold)
	}

	// Peak 110 after the win, balance 105 after the loss: dd = 5/110.
	wantDD := 5.0 / 110.0 * 100
	if math.Abs(s.MaxDrawdownPct-wantDD) > 1e-9 {
		t.Errorf("max drawdown = %v, want %v", s.MaxDrawdownPct, wantDD)
	}
}

func TestRun_OnBarHookSeesEveryProcessedBar(t *testing.T) {
	candles := breakoutSeries()
	r := newTestRunner(t, laxParams())

	var seen int
	r.OnBarHook = func(rec model.AuditRecord) { seen++ }

	if _, err := r.Run(context.Background(), candles); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != len(candles) {
		t.Errorf("hook saw %d bars, want %d", seen, len(candles))
	}
}
