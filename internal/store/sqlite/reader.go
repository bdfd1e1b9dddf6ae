package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"breakout-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for candle replay.
// It implements model.CandleReader.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles reads candles for one instrument and TF, ordered by timestamp
// ascending for correct replay order. afterTS restricts to ts > afterTS
// (pass 0 for the full series).
func (r *Reader) ReadCandles(exchange, symbol string, tf int, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, exchange, tf, ts, open, high, low, close, volume, funding_rate, open_interest
		FROM candles
		WHERE exchange = ? AND symbol = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`, exchange, symbol, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		var funding, oi sql.NullFloat64
		if err := rows.Scan(&c.Symbol, &c.Exchange, &c.TF, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &funding, &oi); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		if funding.Valid {
			v := funding.Float64
			c.FundingRate = &v
		}
		if oi.Valid {
			v := oi.Float64
			c.OpenInterest = &v
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastTimestamp returns the last stored candle timestamp for an instrument
// and TF. Returns 0 if no candles exist.
func (r *Reader) LastTimestamp(exchange, symbol string, tf int) (int64, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE exchange = ? AND symbol = ? AND tf = ?`,
		exchange, symbol, tf,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
