// cmd/backtest replays historical candle data from SQLite through the full
// strategy pipeline (indicators → signal generator → position manager) and
// reports the resulting trade ledger, equity curve, and run summary.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/market.db --exchange=BINANCE --symbol=BTCUSDT --tf=60
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breakout-systemv1/config"
	"breakout-systemv1/internal/indicator"
	"breakout-systemv1/internal/logger"
	"breakout-systemv1/internal/metrics"
	"breakout-systemv1/internal/notification"
	"breakout-systemv1/internal/sim"
	redisstore "breakout-systemv1/internal/store/redis"
	sqlitestore "breakout-systemv1/internal/store/sqlite"
	"breakout-systemv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("backtest", slog.LevelInfo)

	// Instrument selection
	dbPath := flag.String("db", "", "Path to SQLite database (default $SQLITE_PATH)")
	exchange := flag.String("exchange", "BINANCE", "Exchange name")
	symbol := flag.String("symbol", "BTCUSDT", "Instrument symbol")
	tf := flag.Int("tf", 60, "Timeframe in seconds")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start from (0=all)")

	// Run parameters
	balance := flag.Float64("balance", 10000, "Initial account balance")
	stratName := flag.String("strategy", "breakout", "Strategy name")
	paramsJSON := flag.String("params", "", "Strategy parameter overrides as JSON (default: documented defaults)")

	// Optional sinks
	useRedis := flag.Bool("redis", false, "Publish per-bar audit records to Redis")
	useMetrics := flag.Bool("metrics", false, "Serve Prometheus metrics during the run")
	persist := flag.Bool("persist", true, "Persist trade ledger and equity curve to SQLite")
	auditOut := flag.String("audit-out", "", "Write the full audit trail as JSON to this file")
	flag.Parse()

	cfg := config.Load()
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	params := strategy.DefaultParams()
	if *paramsJSON != "" {
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			log.Fatalf("[backtest] invalid --params: %v", err)
		}
	}

	runner, err := sim.NewRunner(sim.Config{
		InitialBalance: *balance,
		StrategyName:   *stratName,
		Params:         params,
		Indicators:     indicator.DefaultConfig(),
	})
	if err != nil {
		log.Fatalf("[backtest] config rejected: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Optional collaborators
	var m *metrics.Metrics
	if *useMetrics {
		m = metrics.New()
		runner.Metrics = m
		go metrics.Serve(ctx, cfg.MetricsAddr)
	}
	if *useRedis {
		pub, err := redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("[backtest] redis connect failed: %v", err)
		}
		defer pub.Close()
		if m != nil {
			pub.OnPublish = func(d time.Duration) { m.RedisPublishDur.Observe(d.Seconds()) }
			pub.OnDrop = func() { m.AuditDropped.Inc() }
			pub.OnStateChange = func(from, to redisstore.State) {
				m.AuditBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					m.AuditBreakerTrips.Inc()
				}
			}
		}
		runner.Audit = pub
	}
	runner.Notifier = buildNotifier(cfg)

	// Load the candle series
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	candles, err := reader.ReadCandles(*exchange, *symbol, *tf, *fromTS)
	reader.Close()
	if err != nil {
		log.Fatalf("[backtest] candle load failed: %v", err)
	}
	if len(candles) == 0 {
		log.Fatalf("[backtest] no candles for %s:%s tf=%ds in %s", *exchange, *symbol, *tf, *dbPath)
	}

	runID := logger.GenerateTraceID("run", time.Now())
	log.Printf("[backtest] run %s: %d candles for %s:%s tf=%ds", runID, len(candles), *exchange, *symbol, *tf)

	result, err := runner.Run(ctx, candles)
	if err != nil {
		log.Fatalf("[backtest] run aborted: %v", err)
	}

	fmt.Println()
	fmt.Println(result.Summary.Render())

	if *persist {
		writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
		if err != nil {
			log.Fatalf("[backtest] sqlite open for persist failed: %v", err)
		}
		defer writer.Close()
		if m != nil {
			writer.OnCommit = func(rows int, d time.Duration) { m.SQLiteCommitDur.Observe(d.Seconds()) }
		}
		if err := writer.WriteTrades(runID, result.Trades); err != nil {
			log.Printf("[backtest] trade persist failed: %v", err)
		}
		if err := writer.WriteEquityCurve(runID, result.Equity); err != nil {
			log.Printf("[backtest] equity persist failed: %v", err)
		}
	}

	if *auditOut != "" {
		data, err := json.MarshalIndent(result.Audit, "", "  ")
		if err == nil {
			err = os.WriteFile(*auditOut, data, 0o644)
		}
		if err != nil {
			log.Printf("[backtest] audit export failed: %v", err)
		} else {
			log.Printf("[backtest] audit trail written to %s (%d records)", *auditOut, len(result.Audit))
		}
	}
}

// buildNotifier assembles the notifier chain from configured backends.
func buildNotifier(cfg *config.Config) notification.Notifier {
	var backends notification.Multi
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(backends) == 0 {
		return notification.NewLogNotifier()
	}
	return backends
}
