package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bar for a single instrument and timeframe.
// Candles are immutable once produced and strictly ordered by timestamp.
// Prices are float64 — perpetual-futures quotes carry fractional ticks.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"` // timeframe in seconds
	TS       time.Time `json:"ts"` // bucket start time (UTC, TF-aligned)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`

	// Optional perp metrics. Nil when the feed did not provide them;
	// they are never estimated or forward-filled.
	FundingRate  *float64 `json:"funding_rate,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
}

// Key returns a unique key for this candle's instrument: "exchange:symbol".
func (c *Candle) Key() string {
	return c.Exchange + ":" + c.Symbol
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Usable reports whether the candle carries finite OHLCV data. Unusable
// candles are skipped for signal purposes (and recorded in the run's
// skipped-bar manifest), not treated as fatal.
func (c *Candle) Usable() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Volume >= 0
}

// Validate checks OHLC ordering on a usable candle. A failing candle is a
// fatal input: the simulation halts and reports the offending timestamp.
func (c *Candle) Validate() error {
	if c.High < c.Low {
		return fmt.Errorf("%w: high %.8f < low %.8f at %s", ErrInvalidCandle, c.High, c.Low, c.TS.Format(time.RFC3339))
	}
	if c.Open <= 0 || c.Close <= 0 || c.High <= 0 || c.Low <= 0 {
		return fmt.Errorf("%w: non-positive price at %s", ErrInvalidCandle, c.TS.Format(time.RFC3339))
	}
	if c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
		return fmt.Errorf("%w: open/close outside high-low range at %s", ErrInvalidCandle, c.TS.Format(time.RFC3339))
	}
	return nil
}
