package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the simulation core from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or
// more of these interfaces.

// CandleReader reads ordered candle series for replay.
type CandleReader interface {
	// ReadCandles reads candles for one instrument and TF, ordered by
	// timestamp ascending, restricted to ts > afterTS (0 = all).
	ReadCandles(exchange, symbol string, tf int, afterTS int64) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}

// LedgerWriter persists the trade ledger and equity curve of a run.
type LedgerWriter interface {
	WriteTrades(runID string, trades []Trade) error
	WriteEquityCurve(runID string, points []EquityPoint) error
	Close() error
}

// AuditPublisher streams per-bar audit records (signal + indicator snapshot)
// for external consumers. Publish must never block the simulation loop.
type AuditPublisher interface {
	Publish(ctx context.Context, rec AuditRecord) error
	Close() error
}
