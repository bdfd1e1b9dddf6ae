// cmd/candleimport loads exported OHLCV history from a CSV file into the
// SQLite candle store, batching inserts through the single-writer loop.
// Re-running against the same file is safe: --resume skips every row at or
// before the last stored timestamp for the instrument.
//
// Usage:
//
//	go run ./cmd/candleimport --csv=btcusdt-1m.csv --exchange=BINANCE --symbol=BTCUSDT --tf=60
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"breakout-systemv1/config"
	"breakout-systemv1/internal/ingest"
	"breakout-systemv1/internal/model"
	sqlitestore "breakout-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "", "Path to SQLite database (default $SQLITE_PATH)")
	csvPath := flag.String("csv", "", "CSV file to import (required)")
	exchange := flag.String("exchange", "BINANCE", "Exchange name")
	symbol := flag.String("symbol", "BTCUSDT", "Instrument symbol")
	tf := flag.Int("tf", 60, "Timeframe in seconds")
	resume := flag.Bool("resume", true, "Skip rows at or before the last stored timestamp")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("[import] --csv is required")
	}

	cfg := config.Load()
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("[import] open csv: %v", err)
	}
	defer f.Close()

	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[import] sqlite: %v", err)
	}
	defer writer.Close()

	var afterTS int64
	if *resume {
		reader, err := sqlitestore.NewReader(*dbPath)
		if err != nil {
			log.Fatalf("[import] sqlite reader: %v", err)
		}
		afterTS, err = reader.LastTimestamp(*exchange, *symbol, *tf)
		reader.Close()
		if err != nil {
			log.Fatalf("[import] last timestamp: %v", err)
		}
		if afterTS > 0 {
			log.Printf("[import] resuming %s:%s tf=%d after ts=%d", *exchange, *symbol, *tf, afterTS)
		}
	}

	ch := make(chan model.Candle, 256)
	done := make(chan struct{})
	go func() {
		writer.Run(context.Background(), ch)
		close(done)
	}()

	stats, err := ingest.ReadCSV(f, *exchange, *symbol, *tf, afterTS, ch)
	close(ch)
	<-done
	if err != nil {
		log.Fatalf("[import] %s: %v", *csvPath, err)
	}

	log.Printf("[import] done: %d candles imported, %d rows skipped", stats.Rows, stats.Skipped)
}
