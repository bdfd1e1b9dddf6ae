// Package ingest parses exported OHLCV history into candles for the
// SQLite store. The expected layout is one bar per row:
//
//	ts,open,high,low,close,volume[,funding_rate,open_interest]
//
// ts is unix seconds (bucket start). A header row is detected and
// skipped. The two perp columns are optional and may be blank.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"breakout-systemv1/internal/model"
)

// Stats summarizes one import pass.
type Stats struct {
	Rows    int // candles emitted
	Skipped int // rows at or before the resume timestamp
}

// ReadCSV streams candles from r into out, stamping each with the given
// instrument identity. Rows with ts <= afterTS are skipped (resume
// support); a malformed row aborts the import with its line number.
// The caller owns out and closes it after ReadCSV returns.
func ReadCSV(r io.Reader, exchange, symbol string, tf int, afterTS int64, out chan<- model.Candle) (Stats, error) {
	var st Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // 6 or 8 columns
	cr.ReuseRecord = true

	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("csv read: %w", err)
		}
		line++

		// Header row: first field is not a number.
		if line == 1 {
			if _, err := strconv.ParseInt(rec[0], 10, 64); err != nil {
				continue
			}
		}

		c, err := parseRow(rec, exchange, symbol, tf)
		if err != nil {
			return st, fmt.Errorf("line %d: %w", line, err)
		}
		if c.TS.Unix() <= afterTS {
			st.Skipped++
			continue
		}
		out <- c
		st.Rows++
	}
}

func parseRow(rec []string, exchange, symbol string, tf int) (model.Candle, error) {
	if len(rec) != 6 && len(rec) != 8 {
		return model.Candle{}, fmt.Errorf("expected 6 or 8 columns, got %d", len(rec))
	}

	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("ts %q: %w", rec[0], err)
	}

	var ohlcv [5]float64
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("%s %q: %w", names[i], rec[i+1], err)
		}
		ohlcv[i] = v
	}

	c := model.Candle{
		Symbol:   symbol,
		Exchange: exchange,
		TF:       tf,
		TS:       time.Unix(ts, 0).UTC(),
		Open:     ohlcv[0],
		High:     ohlcv[1],
		Low:      ohlcv[2],
		Close:    ohlcv[3],
		Volume:   ohlcv[4],
	}

	if len(rec) == 8 {
		if rec[6] != "" {
			v, err := strconv.ParseFloat(rec[6], 64)
			if err != nil {
				return model.Candle{}, fmt.Errorf("funding_rate %q: %w", rec[6], err)
			}
			c.FundingRate = &v
		}
		if rec[7] != "" {
			v, err := strconv.ParseFloat(rec[7], 64)
			if err != nil {
				return model.Candle{}, fmt.Errorf("open_interest %q: %w", rec[7], err)
			}
			c.OpenInterest = &v
		}
	}
	return c, nil
}
