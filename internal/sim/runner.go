// Package sim provides the simulation driver: it replays an ordered candle
// series through the indicator calculator, signal generator, and position
// manager, and accumulates the resulting trade ledger and equity curve.
//
// The loop is strictly sequential and deterministic — identical candles and
// configuration always yield an identical ledger. The driver is the only
// component aware of iteration order and of "current time".
package sim

import (
	"context"
	"fmt"
	"log"
	"time"

	"breakout-systemv1/internal/indicator"
	"breakout-systemv1/internal/metrics"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/notification"
	"breakout-systemv1/internal/position"
	"breakout-systemv1/internal/strategy"
	"breakout-systemv1/internal/window"
)

// Config is the full, validated configuration of one run. It is passed
// read-only to every component and never mutated mid-run.
type Config struct {
	InitialBalance float64
	StrategyName   string // "" = breakout
	Params         strategy.Params
	Indicators     indicator.Config
}

// SkippedBar records one bar excluded from signal evaluation.
type SkippedBar struct {
	TS   time.Time `json:"ts"`
	Note string    `json:"note"`
}

// Result is the complete output of a run: the ordered trade ledger, the
// equity curve, the per-bar audit trail, and the skipped-bar manifest.
type Result struct {
	Trades  []model.Trade       `json:"trades"`
	Equity  []model.EquityPoint `json:"equity"`
	Audit   []model.AuditRecord `json:"audit"`
	Skipped []SkippedBar        `json:"skipped"`
	Summary Summary             `json:"summary"`
}

// Runner drives one instrument through one candle series.
// Single-goroutine, synchronous, no suspension points: signal and exit
// evaluation are order-dependent, so correctness requires one writer and
// one timeline. Independent instruments need independent Runners.
type Runner struct {
	cfg     Config
	strat   strategy.Strategy
	calc    *indicator.Calculator
	win     *window.Window
	manager *position.Manager

	// Optional collaborators — nil disables them.
	Metrics   *metrics.Metrics
	Audit     model.AuditPublisher
	Notifier  notification.Notifier
	OnBarHook func(rec model.AuditRecord) // e.g. websocket feed
}

// NewRunner validates the configuration and assembles the pipeline.
// Configuration errors are fatal here, before any candle is processed.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.InitialBalance < 0 {
		return nil, fmt.Errorf("%w: initial balance must be non-negative, got %g",
			model.ErrInvalidConfig, cfg.InitialBalance)
	}

	strat, err := strategy.New(cfg.StrategyName, cfg.Params)
	if err != nil {
		return nil, err
	}

	winCap := cfg.Params.BreakoutLookback + 2
	if winCap < 16 {
		winCap = 16
	}

	return &Runner{
		cfg:     cfg,
		strat:   strat,
		calc:    indicator.NewCalculator(cfg.Indicators),
		win:     window.New(winCap),
		manager: position.NewManager(cfg.Params),
	}, nil
}

// Run processes the full candle series in order. It either completes with a
// full Result (including the skipped-bar manifest) or aborts on the first
// fatal input, identifying the offending timestamp.
func (r *Runner) Run(ctx context.Context, candles []model.Candle) (*Result, error) {
	// The feeder must not outlive the run: RunStream can abort on a fatal
	// candle mid-series, so the feeder selects on a context cancelled when
	// this function returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan model.Candle)
	go func() {
		defer close(ch)
		for i := range candles {
			select {
			case ch <- candles[i]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return r.RunStream(ctx, ch)
}

// RunStream processes candles as they arrive on candleCh, in channel order.
// The feed server uses it to drive the pipeline from a paced replayer.
// Cancelling ctx stops consumption and finalizes the run (forced close,
// summary) with the candles seen so far.
func (r *Runner) RunStream(ctx context.Context, candleCh <-chan model.Candle) (*Result, error) {
	res := &Result{}
	balance := r.cfg.InitialBalance
	var prevTS time.Time
	var lastValid model.Candle
	haveValid := false
	processed := 0

	started := time.Now()
loop:
	for {
		var c model.Candle
		var ok bool
		select {
		case <-ctx.Done():
			log.Printf("[sim] cancelled after %d candles", processed)
			break loop
		case c, ok = <-candleCh:
			if !ok {
				break loop
			}
		}
		processed++

		if !prevTS.IsZero() && !c.TS.After(prevTS) {
			return nil, fmt.Errorf("%w: non-monotonic timestamp at %s",
				model.ErrInvalidCandle, c.TS.Format(time.RFC3339))
		}
		prevTS = c.TS

		if !c.Usable() {
			// Skipped for signal purposes, but risk management never
			// pauses: exits are still evaluated at the last valid price.
			r.skipBar(res, c, "non-finite OHLCV")
			if trade := r.manager.OnDegradedBar(c); trade != nil {
				balance = r.recordTrade(res, trade, balance)
			}
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}

		rec := r.processBar(c, res, &balance)
		res.Audit = append(res.Audit, rec)
		r.emit(ctx, rec)

		lastValid = c
		haveValid = true
	}

	// End of data: forced liquidation at the last available close.
	if haveValid {
		if trade := r.manager.ForceClose(lastValid); trade != nil {
			balance = r.recordTrade(res, trade, balance)
		}
	}

	res.Summary = Summarize(r.cfg.InitialBalance, balance, res.Trades, res.Skipped)
	log.Printf("[sim] run complete: %d candles, %d trades, %d skipped bars in %v",
		processed, len(res.Trades), len(res.Skipped), time.Since(started))

	if r.Notifier != nil {
		_ = r.Notifier.Send(ctx, notification.Alert{
			Level: notification.AlertInfo,
			Title: "run complete",
			Message: fmt.Sprintf("%d trades, net pnl %.4f, final balance %.4f",
				len(res.Trades), res.Summary.NetPnL, balance),
		})
	}
	return res, nil
}

// processBar runs the per-bar pipeline: indicators → signal → position.
func (r *Runner) processBar(c model.Candle, res *Result, balance *float64) model.AuditRecord {
	barStart := time.Now()

	r.win.Push(c)
	snap := r.calc.Update(c)
	sig := r.strat.GenerateSignal(r.win, snap, r.manager.State())

	if trade := r.manager.OnBar(c, snap, sig); trade != nil {
		*balance = r.recordTrade(res, trade, *balance)
	}

	if r.Metrics != nil {
		r.Metrics.CandlesTotal.Inc()
		r.Metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
		r.Metrics.BarEvalDur.Observe(time.Since(barStart).Seconds())
	}

	return model.AuditRecord{
		Symbol:   c.Symbol,
		Exchange: c.Exchange,
		TS:       c.TS,
		Snapshot: snap,
		Signal:   sig,
	}
}

func (r *Runner) recordTrade(res *Result, trade *model.Trade, balance float64) float64 {
	res.Trades = append(res.Trades, *trade)
	balance += trade.PnLNet
	res.Equity = append(res.Equity, model.EquityPoint{
		TS:      trade.ClosedAt,
		Balance: balance,
		TradeN:  len(res.Trades),
	})

	if r.Metrics != nil {
		r.Metrics.TradesTotal.WithLabelValues(string(trade.Reason)).Inc()
	}
	if r.Notifier != nil {
		level := notification.AlertInfo
		if trade.PnLNet < 0 {
			level = notification.AlertWarning
		}
		_ = r.Notifier.Send(context.Background(), notification.Alert{
			Level: level,
			Title: fmt.Sprintf("trade closed: %s", trade.Reason),
			Message: fmt.Sprintf("%s %s entry %.4f exit %.4f pnl_net %.4f",
				trade.Side, trade.Symbol, trade.EntryPrice, trade.ExitPrice, trade.PnLNet),
		})
	}
	return balance
}

func (r *Runner) skipBar(res *Result, c model.Candle, note string) {
	res.Skipped = append(res.Skipped, SkippedBar{TS: c.TS, Note: note})
	rec := model.AuditRecord{
		Symbol:   c.Symbol,
		Exchange: c.Exchange,
		TS:       c.TS,
		Signal:   model.Wait("bar skipped: "+note, c.TS),
		Skipped:  true,
		SkipNote: note,
	}
	res.Audit = append(res.Audit, rec)
	if r.Metrics != nil {
		r.Metrics.SkippedBars.Inc()
	}
	log.Printf("[sim] skipped bar at %s: %s", c.TS.Format(time.RFC3339), note)
}

// emit forwards the audit record to optional sinks. Publishing failures are
// logged and never corrupt or stall the run.
func (r *Runner) emit(ctx context.Context, rec model.AuditRecord) {
	if r.Audit != nil {
		if err := r.Audit.Publish(ctx, rec); err != nil {
			log.Printf("[sim] audit publish failed: %v", err)
		}
	}
	if r.OnBarHook != nil {
		r.OnBarHook(rec)
	}
}
