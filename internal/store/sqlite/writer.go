package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"breakout-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/market.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
// It stores candles (ingestion side) and run results (trade ledger and
// equity curve). Implements model.LedgerWriter.
type Writer struct {
	db *sql.DB

	// OnCommit is called after each successful batch commit (for metrics).
	OnCommit func(rows int, dur time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol        TEXT    NOT NULL,
			exchange      TEXT    NOT NULL,
			tf            INTEGER NOT NULL,
			ts            INTEGER NOT NULL,
			open          REAL    NOT NULL,
			high          REAL    NOT NULL,
			low           REAL    NOT NULL,
			close         REAL    NOT NULL,
			volume        REAL,
			funding_rate  REAL,
			open_interest REAL,
			PRIMARY KEY (exchange, symbol, tf, ts)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			exchange    TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			entry_price REAL    NOT NULL,
			exit_price  REAL    NOT NULL,
			size        REAL    NOT NULL,
			pnl_gross   REAL    NOT NULL,
			pnl_net     REAL    NOT NULL,
			opened_at   INTEGER NOT NULL,
			closed_at   INTEGER NOT NULL,
			reason      TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades (run_id);

		CREATE TABLE IF NOT EXISTS equity_curve (
			run_id  TEXT    NOT NULL,
			trade_n INTEGER NOT NULL,
			ts      INTEGER NOT NULL,
			balance REAL    NOT NULL,
			PRIMARY KEY (run_id, trade_n)
		);
	`)
	return err
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d candles in %v", len(batch), time.Since(start))
			if w.OnCommit != nil {
				w.OnCommit(len(batch), time.Since(start))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of candles in a single transaction.
func (w *Writer) insertBatch(candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, exchange, tf, ts, open, high, low, close, volume, funding_rate, open_interest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		var funding, oi interface{}
		if c.FundingRate != nil {
			funding = *c.FundingRate
		}
		if c.OpenInterest != nil {
			oi = *c.OpenInterest
		}
		_, err := stmt.Exec(c.Symbol, c.Exchange, c.TF, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, funding, oi)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// WriteTrades persists a run's trade ledger in a single transaction.
func (w *Writer) WriteTrades(runID string, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO trades (run_id, symbol, exchange, side, entry_price, exit_price, size, pnl_gross, pnl_net, opened_at, closed_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	start := time.Now()
	for _, t := range trades {
		_, err := stmt.Exec(runID, t.Symbol, t.Exchange, string(t.Side), t.EntryPrice, t.ExitPrice, t.Size,
			t.PnLGross, t.PnLNet, t.OpenedAt.Unix(), t.ClosedAt.Unix(), string(t.Reason))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] persisted %d trades for run %s", len(trades), runID)
	if w.OnCommit != nil {
		w.OnCommit(len(trades), time.Since(start))
	}
	return nil
}

// WriteEquityCurve persists a run's equity curve in a single transaction.
func (w *Writer) WriteEquityCurve(runID string, points []model.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO equity_curve (run_id, trade_n, ts, balance)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(runID, p.TradeN, p.TS.Unix(), p.Balance); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ReadTrades loads the trade ledger for a run, ordered by close time.
func (w *Writer) ReadTrades(runID string) ([]model.Trade, error) {
	rows, err := w.db.Query(`
		SELECT symbol, exchange, side, entry_price, exit_price, size, pnl_gross, pnl_net, opened_at, closed_at, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY closed_at ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, reason string
		var opened, closed int64
		if err := rows.Scan(&t.Symbol, &t.Exchange, &side, &t.EntryPrice, &t.ExitPrice, &t.Size,
			&t.PnLGross, &t.PnLNet, &opened, &closed, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.Side = model.Side(side)
		t.Reason = model.CloseReason(reason)
		t.OpenedAt = time.Unix(opened, 0).UTC()
		t.ClosedAt = time.Unix(closed, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
