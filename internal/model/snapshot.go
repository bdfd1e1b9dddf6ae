package model

import (
	"encoding/json"
	"time"
)

// Trend labels the prevailing market direction.
type Trend string

const (
	TrendUp       Trend = "up"
	TrendDown     Trend = "down"
	TrendSideways Trend = "sideways"
)

// IndicatorSnapshot holds the derived, read-only indicator values for the
// last candle of a trailing window. Until the warm-up period (max configured
// lookback) has elapsed, Ready is false and the value fields are undefined —
// absent, not zero. Consumers must check Ready before reading values.
type IndicatorSnapshot struct {
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	TS       time.Time `json:"ts"`
	Ready    bool      `json:"ready"`

	RSI           float64 `json:"rsi,omitempty"`
	ATR           float64 `json:"atr,omitempty"`
	SMAFast       float64 `json:"sma_fast,omitempty"`
	SMASlow       float64 `json:"sma_slow,omitempty"`
	EMAFast       float64 `json:"ema_fast,omitempty"`
	VolatilityPct float64 `json:"volatility_pct,omitempty"`
	VolumeRatio   float64 `json:"volume_ratio,omitempty"`
	Trend         Trend   `json:"trend,omitempty"`
}

// JSON returns the JSON-encoded snapshot.
func (s *IndicatorSnapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// EquityPoint is one point of the equity curve: the running balance after a
// closed trade.
type EquityPoint struct {
	TS      time.Time `json:"ts"`
	Balance float64   `json:"balance"`
	TradeN  int       `json:"trade_n"` // 1-based index into the ledger
}

// AuditRecord is the per-bar output kept for audit and replay: the signal
// and indicator snapshot computed on that bar.
type AuditRecord struct {
	Symbol   string            `json:"symbol"`
	Exchange string            `json:"exchange"`
	TS       time.Time         `json:"ts"`
	Snapshot IndicatorSnapshot `json:"snapshot"`
	Signal   Signal            `json:"signal"`
	Skipped  bool              `json:"skipped,omitempty"` // bar skipped for signal purposes
	SkipNote string            `json:"skip_note,omitempty"`
}

// JSON returns the JSON-encoded audit record.
func (r *AuditRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
