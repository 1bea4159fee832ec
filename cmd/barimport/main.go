// cmd/barimport loads yfinance-style CSV exports into the SQLite bars table.
//
// Usage:
//
//	go run ./cmd/barimport --csv=data/EURUSD=X.csv --symbol=EURUSD --interval=1d
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"srsignals/config"
	"srsignals/internal/logger"
	"srsignals/internal/marketdata/csvload"
	sqlitestore "srsignals/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[barimport] config: %v", err)
	}

	csvPath := flag.String("csv", "", "CSV file to import (required)")
	symbol := flag.String("symbol", "", "Series symbol (required)")
	interval := flag.String("interval", "1d", "Series interval, e.g. 1d, 1h")
	dbPath := flag.String("db", cfg.Storage.SQLitePath, "Path to SQLite database")
	keepFlat := flag.Bool("keep-flat", false, "Keep bars whose high equals their low")
	flag.Parse()

	logger.Init("barimport", logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	if *csvPath == "" || *symbol == "" {
		flag.Usage()
		log.Fatal("[barimport] --csv and --symbol are required")
	}

	res, err := csvload.LoadFile(*csvPath, csvload.Options{Symbol: *symbol, Interval: *interval, KeepFlat: *keepFlat})
	if err != nil {
		log.Fatalf("[barimport] %v", err)
	}
	if len(res.Bars) == 0 {
		log.Fatalf("[barimport] %s: no usable rows", *csvPath)
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[barimport] sqlite open failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := w.WriteBars(ctx, res.Bars); err != nil {
		log.Fatalf("[barimport] write: %v", err)
	}
	slog.Info("bars imported",
		"series", res.Bars[0].Key(),
		"rows", len(res.Bars),
		"flat_dropped", res.Flat,
		"missing_dropped", res.Missing,
		"first", res.Bars[0].TS,
		"last", res.Bars[len(res.Bars)-1].TS,
		"db", *dbPath,
		"elapsed", time.Since(start))
}
