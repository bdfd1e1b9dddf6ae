// cmd/feedserver replays historical candles at configurable speed through
// the strategy pipeline and broadcasts candles and per-bar audit records
// to WebSocket clients. Useful for driving dashboards and demos without
// live market data.
//
// Usage:
//
//	go run ./cmd/feedserver --speed=60 --exchange=BINANCE --symbol=BTCUSDT --tf=60
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"breakout-systemv1/config"
	"breakout-systemv1/internal/feed"
	"breakout-systemv1/internal/indicator"
	"breakout-systemv1/internal/logger"
	"breakout-systemv1/internal/metrics"
	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/replay"
	"breakout-systemv1/internal/sim"
	redisstore "breakout-systemv1/internal/store/redis"
	sqlitestore "breakout-systemv1/internal/store/sqlite"
	"breakout-systemv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("feedserver", slog.LevelInfo)

	dbPath := flag.String("db", "", "Path to SQLite database (default $SQLITE_PATH)")
	exchange := flag.String("exchange", "BINANCE", "Exchange name")
	symbol := flag.String("symbol", "BTCUSDT", "Instrument symbol")
	tf := flag.Int("tf", 60, "Timeframe in seconds")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	speed := flag.Float64("speed", 60, "Playback speed multiplier (0=max, 1=realtime)")
	balance := flag.Float64("balance", 10000, "Initial account balance")
	useRedis := flag.Bool("redis", false, "Publish per-bar audit records to Redis")
	flag.Parse()

	cfg := config.Load()
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	m := metrics.New()
	go metrics.Serve(ctx, cfg.MetricsAddr)

	hub := feed.NewHub()
	hub.OnClientChange = func(count int) { m.FeedClients.Set(float64(count)) }
	hub.OnDrop = func() { m.FeedDropped.Inc() }

	runner, err := sim.NewRunner(sim.Config{
		InitialBalance: *balance,
		StrategyName:   "breakout",
		Params:         strategy.DefaultParams(),
		Indicators:     indicator.DefaultConfig(),
	})
	if err != nil {
		log.Fatalf("[feedserver] config rejected: %v", err)
	}
	runner.Metrics = m
	runner.OnBarHook = hub.BroadcastAudit

	var pub *redisstore.Publisher
	if *useRedis {
		pub, err = redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("[feedserver] redis connect failed: %v", err)
		}
		defer pub.Close()
		pub.OnPublish = func(d time.Duration) { m.RedisPublishDur.Observe(d.Seconds()) }
		pub.OnDrop = func() { m.AuditDropped.Inc() }
		pub.OnStateChange = func(from, to redisstore.State) {
			m.AuditBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				m.AuditBreakerTrips.Inc()
			}
		}
		runner.Audit = pub
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[feedserver] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// Feed HTTP server: WS endpoint + gap backfill + health.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		if channel == "" || from <= 0 || to < from {
			http.Error(w, "channel, from and to are required", http.StatusBadRequest)
			return
		}
		envelopes := hub.GetReplayRange(channel, from, to)
		w.Header().Set("Content-Type", "application/json")
		raw := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			raw[i] = e
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"channel":     channel,
			"envelopes":   raw,
			"current_seq": hub.GetChannelSeq(channel),
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "ok",
			"clients": hub.ClientCount(),
		}
		if pub != nil {
			pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer pingCancel()
			redisStatus := "ok"
			if err := pub.Client().Ping(pingCtx).Err(); err != nil {
				redisStatus = err.Error()
			}
			status["redis"] = redisStatus
			status["audit_breaker"] = pub.Breaker().CurrentState().String()
			status["audit_pending"] = pub.PendingCount()
			if redisStatus != "ok" {
				status["status"] = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	srv := &http.Server{Addr: cfg.FeedAddr, Handler: mux}
	go func() {
		log.Printf("[feedserver] serving ws on %s", cfg.FeedAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[feedserver] http server: %v", err)
		}
	}()

	// Replay candles at speed, tee each one to the feed before the pipeline.
	replayCh := make(chan model.Candle, 1024)
	pipeCh := make(chan model.Candle, 1024)
	go func() {
		replayer := replay.New(reader)
		if err := replayer.Run(ctx, *exchange, *symbol, *tf, *fromTS, *speed, replayCh); err != nil && err != context.Canceled {
			log.Printf("[feedserver] replay error: %v", err)
		}
		close(replayCh)
	}()
	go func() {
		defer close(pipeCh)
		for c := range replayCh {
			hub.BroadcastCandle(c)
			pipeCh <- c
		}
	}()

	result, err := runner.RunStream(ctx, pipeCh)
	if err != nil {
		log.Fatalf("[feedserver] run aborted: %v", err)
	}
	log.Printf("[feedserver] replay finished: %d trades, net pnl %.4f",
		result.Summary.TotalTrades, result.Summary.NetPnL)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
