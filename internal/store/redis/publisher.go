package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"breakout-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: keep roughly a day of 1m audit records + buffer
	auditStreamMaxLen = 1540
	defaultLatestTTL  = 30 * time.Minute
)

// PublisherConfig configures the Redis audit publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher streams per-bar audit records (signal + indicator snapshot) to
// Redis for external consumers: XADD to an audit stream, SET of the latest
// record, and PUBLISH for real-time subscribers. It implements
// model.AuditPublisher.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	buf    *auditBuffer

	// Callbacks (optional, for metrics)
	OnPublish     func(dur time.Duration)
	OnDrop        func()
	OnStateChange func(from, to State)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the publisher's circuit breaker for state inspection.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// NewPublisher creates a Publisher and pings the server. Publish failures
// run through a circuit breaker: after 5 consecutive failures the breaker
// opens and records are buffered locally until Redis recovers.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(5, 10*time.Second),
	}
	p.buf = newAuditBuffer(p, 10000)

	log.Printf("[redis] connected to %s", cfg.Addr)
	return p, nil
}

// Publish writes an audit record through the circuit breaker. When the
// breaker is open the record is buffered locally and flushed once Redis
// recovers; the simulation loop is never blocked on Redis health.
func (p *Publisher) Publish(ctx context.Context, rec model.AuditRecord) error {
	err := p.cb.Execute(func() error {
		return p.write(ctx, rec)
	})
	if err == ErrCircuitOpen {
		p.buf.add(rec)
		return nil // buffered, not lost
	}
	return err
}

// write performs the pipelined XADD + SET + PUBLISH for one record.
func (p *Publisher) write(ctx context.Context, rec model.AuditRecord) error {
	start := time.Now()
	jsonData := string(rec.JSON())

	streamKey := "audit:" + rec.Exchange + ":" + rec.Symbol
	latestKey := "audit:latest:" + rec.Exchange + ":" + rec.Symbol
	pubsubCh := "pub:audit:" + rec.Exchange + ":" + rec.Symbol

	pipe := p.client.Pipeline()

	// XADD to audit stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: auditStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	// SET latest record with TTL
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// PUBLISH for real-time subscribers
	pipe.Publish(ctx, pubsubCh, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis audit pipeline for %s:%s: %w", rec.Exchange, rec.Symbol, err)
	}

	if p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
	return nil
}

// PendingCount returns the number of buffered records waiting for flush.
func (p *Publisher) PendingCount() int {
	return p.buf.pending()
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
