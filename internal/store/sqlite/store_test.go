package sqlite

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"breakout-systemv1/internal/model"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := New(WriterConfig{DBPath: filepath.Join(t.TempDir(), "market.db")})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func testCandle(i int) model.Candle {
	ts := time.Unix(1700000000+int64(i)*60, 0).UTC()
	return model.Candle{
		Symbol: "BTCUSDT", Exchange: "BINANCE", TF: 60, TS: ts,
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 2500,
	}
}

func TestWriterRun_BatchesAndPersists(t *testing.T) {
	w := newTestWriter(t)

	var commits, rows atomic.Int64
	w.OnCommit = func(n int, _ time.Duration) {
		commits.Add(1)
		rows.Add(int64(n))
	}

	ch := make(chan model.Candle)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), ch)
		close(done)
	}()

	const n = 250
	for i := 0; i < n; i++ {
		ch <- testCandle(i)
	}
	close(ch)
	<-done

	if rows.Load() != n {
		t.Fatalf("committed %d rows, want %d", rows.Load(), n)
	}
	// 250 candles at batch size 100 means at least a full batch committed
	// before the channel closed.
	if commits.Load() < 2 {
		t.Errorf("expected multiple batch commits, got %d", commits.Load())
	}
}

func TestWriterRun_ReadBackAndResume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.db")

	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}

	ch := make(chan model.Candle)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), ch)
		close(done)
	}()
	fr := 0.0001
	for i := 0; i < 50; i++ {
		c := testCandle(i)
		if i == 0 {
			c.FundingRate = &fr
		}
		ch <- c
	}
	close(ch)
	<-done
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	candles, err := r.ReadCandles("BINANCE", "BTCUSDT", 60, 0)
	if err != nil {
		t.Fatalf("read candles: %v", err)
	}
	if len(candles) != 50 {
		t.Fatalf("read %d candles, want 50", len(candles))
	}
	if candles[0].FundingRate == nil || *candles[0].FundingRate != fr {
		t.Error("funding rate lost in roundtrip")
	}
	if candles[1].FundingRate != nil {
		t.Error("nil funding rate must survive as nil")
	}

	last, err := r.LastTimestamp("BINANCE", "BTCUSDT", 60)
	if err != nil {
		t.Fatalf("last timestamp: %v", err)
	}
	if want := testCandle(49).TS.Unix(); last != want {
		t.Errorf("LastTimestamp = %d, want %d", last, want)
	}
	if last, _ := r.LastTimestamp("BINANCE", "ETHUSDT", 60); last != 0 {
		t.Errorf("unknown instrument: LastTimestamp = %d, want 0", last)
	}

	// Resume read: only candles strictly after the cutoff.
	tail, err := r.ReadCandles("BINANCE", "BTCUSDT", 60, testCandle(47).TS.Unix())
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if len(tail) != 2 {
		t.Errorf("read %d tail candles, want 2", len(tail))
	}
}

func TestWriteTrades_ReadBackOrdered(t *testing.T) {
	w := newTestWriter(t)

	open1 := time.Unix(1700000000, 0).UTC()
	trades := []model.Trade{
		{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Side: model.SideLong,
			EntryPrice: 100, ExitPrice: 104, Size: 1, PnLGross: 4, PnLNet: 3.88,
			OpenedAt: open1, ClosedAt: open1.Add(10 * time.Minute),
			Reason: model.CloseTakeProfit,
		},
		{
			Symbol: "BTCUSDT", Exchange: "BINANCE", Side: model.SideShort,
			EntryPrice: 104, ExitPrice: 106, Size: 1, PnLGross: -2, PnLNet: -2,
			OpenedAt: open1.Add(15 * time.Minute), ClosedAt: open1.Add(25 * time.Minute),
			Reason: model.CloseStopLoss,
		},
	}
	if err := w.WriteTrades("run-1", trades); err != nil {
		t.Fatalf("write trades: %v", err)
	}

	got, err := w.ReadTrades("run-1")
	if err != nil {
		t.Fatalf("read trades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d trades, want 2", len(got))
	}
	if got[0].Reason != model.CloseTakeProfit || got[1].Reason != model.CloseStopLoss {
		t.Errorf("wrong order or reasons: %s, %s", got[0].Reason, got[1].Reason)
	}
	if got[0].PnLNet != 3.88 || !got[0].OpenedAt.Equal(open1) {
		t.Errorf("trade fields lost in roundtrip: %+v", got[0])
	}

	if other, _ := w.ReadTrades("run-2"); len(other) != 0 {
		t.Errorf("run isolation broken: got %d trades for empty run", len(other))
	}

	if err := w.DB().Ping(); err != nil {
		t.Errorf("db ping: %v", err)
	}
}
