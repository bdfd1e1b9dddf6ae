// Package metrics exposes Prometheus instrumentation for the simulation
// core and its storage collaborators.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a simulation run.
type Metrics struct {
	CandlesTotal prometheus.Counter
	SkippedBars  prometheus.Counter
	SignalsTotal *prometheus.CounterVec // labels: action
	TradesTotal  *prometheus.CounterVec // labels: reason
	BarEvalDur   prometheus.Histogram

	// Storage collaborators
	SQLiteCommitDur prometheus.Histogram
	RedisPublishDur prometheus.Histogram

	// Audit publisher circuit breaker
	AuditBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	AuditBreakerTrips prometheus.Counter
	AuditDropped      prometheus.Counter

	// Websocket feed
	FeedClients prometheus.Gauge
	FeedDropped prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_candles_total",
			Help: "Total candles processed by the simulation loop",
		}),
		SkippedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_skipped_bars_total",
			Help: "Bars skipped for signal purposes (unusable data)",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_signals_total",
			Help: "Signals emitted by the strategy (by action)",
		}, []string{"action"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_trades_total",
			Help: "Closed trades (by close reason)",
		}, []string{"reason"}),
		BarEvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sim_bar_eval_duration_seconds",
			Help:    "Per-bar evaluation latency (indicators + signal + position)",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sim_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sim_redis_publish_duration_seconds",
			Help:    "Redis audit publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		AuditBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_audit_circuit_breaker_state",
			Help: "Audit publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		AuditBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_audit_circuit_breaker_trips_total",
			Help: "Times the audit publisher circuit breaker tripped open",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_audit_dropped_total",
			Help: "Audit records dropped while the circuit breaker was open",
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_feed_clients",
			Help: "Connected websocket feed clients",
		}),
		FeedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_feed_dropped_total",
			Help: "Feed messages dropped to slow clients",
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.SkippedBars,
		m.SignalsTotal,
		m.TradesTotal,
		m.BarEvalDur,
		m.SQLiteCommitDur,
		m.RedisPublishDur,
		m.AuditBreakerState,
		m.AuditBreakerTrips,
		m.AuditDropped,
		m.FeedClients,
		m.FeedDropped,
	)

	return m
}

// Serve starts the /metrics HTTP endpoint. Blocks until ctx is cancelled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[metrics] server error: %v", err)
	}
}
