package window

import (
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

func mkCandle(i int, high, low, close float64) model.Candle {
	return model.Candle{
		Symbol:   "BTC-USDT",
		Exchange: "okx",
		TF:       60,
		TS:       time.Unix(int64(1700000000+i*60), 0).UTC(),
		Open:     close,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   100,
	}
}

func TestWindow_PushEvictsOldest(t *testing.T) {
	w := New(3)
	for i := 0; i < 5; i++ {
		w.Push(mkCandle(i, float64(100+i), float64(90+i), float64(95+i)))
	}
	if w.Len() != 3 {
		t.Fatalf("expected len 3, got %d", w.Len())
	}
	// Oldest surviving candle should be i=2
	if got := w.At(0).Close; got != 97 {
		t.Errorf("expected oldest close 97, got %.0f", got)
	}
	if got := w.Last().Close; got != 99 {
		t.Errorf("expected newest close 99, got %.0f", got)
	}
}

func TestWindow_HighestHighExcludesNewest(t *testing.T) {
	w := New(10)
	highs := []float64{101, 105, 103, 102, 104, 120} // newest high=120 must not count
	for i, h := range highs {
		w.Push(mkCandle(i, h, h-10, h-5))
	}
	high, ok := w.HighestHigh(5)
	if !ok {
		t.Fatal("expected ok")
	}
	if high != 105 {
		t.Errorf("expected resistance 105, got %.0f", high)
	}
}

func TestWindow_LowestLow(t *testing.T) {
	w := New(10)
	lows := []float64{95, 91, 93, 92, 94, 80} // newest low=80 must not count
	for i, l := range lows {
		w.Push(mkCandle(i, l+10, l, l+5))
	}
	low, ok := w.LowestLow(5)
	if !ok {
		t.Fatal("expected ok")
	}
	if low != 91 {
		t.Errorf("expected support 91, got %.0f", low)
	}
}

func TestWindow_InsufficientData(t *testing.T) {
	w := New(10)
	for i := 0; i < 3; i++ {
		w.Push(mkCandle(i, 100, 90, 95))
	}
	if _, ok := w.HighestHigh(5); ok {
		t.Error("expected not ok with 3 candles, lookback 5")
	}
	if _, ok := w.CloseDelta(5); ok {
		t.Error("expected not ok for CloseDelta")
	}
}

func TestWindow_CloseDelta(t *testing.T) {
	w := New(10)
	for i := 0; i < 6; i++ {
		w.Push(mkCandle(i, 110, 90, float64(100+i)))
	}
	delta, ok := w.CloseDelta(3)
	if !ok {
		t.Fatal("expected ok")
	}
	if delta != 3 {
		t.Errorf("expected delta 3, got %.0f", delta)
	}
}
