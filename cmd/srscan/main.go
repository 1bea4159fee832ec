// cmd/srscan runs the support/resistance detector over one stored or CSV
// series, prints a summary with confluence against trend and band signals,
// and optionally persists the run to SQLite and publishes it to Redis.
//
// Usage:
//
//	go run ./cmd/srscan --csv=data/EURUSD=X.csv --symbol=EURUSD --interval=1d
//	go run ./cmd/srscan --symbol=EURUSD --interval=1d --persist --publish
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"srsignals/config"
	"srsignals/internal/candle"
	"srsignals/internal/indicator"
	"srsignals/internal/levels"
	"srsignals/internal/logger"
	"srsignals/internal/marketdata/csvload"
	"srsignals/internal/model"
	"srsignals/internal/report"
	redisstore "srsignals/internal/store/redis"
	sqlitestore "srsignals/internal/store/sqlite"
	"srsignals/internal/trend"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[srscan] config: %v", err)
	}

	csvPath := flag.String("csv", "", "Read bars from this CSV instead of SQLite")
	symbol := flag.String("symbol", "", "Series symbol (required)")
	interval := flag.String("interval", "1d", "Series interval")
	dbPath := flag.String("db", cfg.Storage.SQLitePath, "Path to SQLite database")
	fromTS := flag.Int64("from", 0, "Unix timestamp of the first stored bar to scan (0=all)")
	workers := flag.Int("workers", cfg.Pipeline.Workers, "Parallel evaluation workers (0=GOMAXPROCS)")
	pattern := flag.String("pattern", "rejection", "Bar pattern feeding the detector: rejection, shooting-star, pin-bar, engulfing")
	limit := flag.Int("limit", 50, "Signal rows to print (0=all)")
	persist := flag.Bool("persist", false, "Save the run and its signals to SQLite")
	publish := flag.Bool("publish", false, "Publish non-zero signals to Redis")
	trendMA := flag.Int("trend-ma", 50, "EMA period for trend classification")
	trendBack := flag.Int("trend-back", 5, "Closes that must sit on one side of the EMA")
	bbPeriod := flag.Int("bb", 10, "Bollinger band period")
	bbDev := flag.Float64("bb-dev", 1.5, "Bollinger band width in standard deviations")
	rsiPeriod := flag.Int("rsi", 6, "RSI period for band confirmation")
	fastMA := flag.Int("fast-ma", 10, "Fast EMA period crossed against the trend EMA")
	columnsStr := flag.String("columns", "", "Indicator values shown per signal: NAME[:PERIOD],... e.g. WILLR:14,ATR:14,CMF:20,VWAP")
	flag.Parse()

	logger.Init("srscan", logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	if *symbol == "" {
		flag.Usage()
		log.Fatal("[srscan] --symbol is required")
	}

	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("[srscan] %v", err)
	}
	specs, err := indicator.ParseColumns(*columnsStr)
	if err != nil {
		log.Fatalf("[srscan] --columns: %v", err)
	}
	det, err := levels.NewDetector(params)
	if err != nil {
		log.Fatalf("[srscan] detector: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	bars, err := loadBars(ctx, *csvPath, *dbPath, *symbol, *interval, *fromTS)
	if err != nil {
		log.Fatalf("[srscan] load: %v", err)
	}
	if len(bars) <= det.Warmup() {
		log.Fatalf("[srscan] %d bars is not enough history (warmup %d)", len(bars), det.Warmup())
	}

	labels, err := candle.PatternSeries(*pattern, bars, cfg.Pipeline.Rejection)
	if err != nil {
		log.Fatalf("[srscan] %v", err)
	}

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)

	start := time.Now()
	results, err := det.EvaluateAll(ctx, bars, labels, *workers)
	if err != nil {
		log.Fatalf("[srscan] evaluate: %v", err)
	}
	for i := range results {
		results[i].RunID = runID
	}
	slog.Info("scan complete", append(logger.Attrs(ctx),
		"series", model.SeriesKey(*symbol, *interval),
		"bars", len(bars),
		"evaluated", len(results),
		"pattern", *pattern,
		"elapsed", time.Since(start))...)

	summary := report.Summarize(bars, results, cfg.Pipeline.TargetBars)
	if err := addConfluence(&summary, bars, results, confluenceOpts{
		trendMA: *trendMA, trendBack: *trendBack, fastMA: *fastMA,
		bbPeriod: *bbPeriod, bbDev: *bbDev, rsiPeriod: *rsiPeriod,
	}); err != nil {
		log.Printf("[srscan] confluence skipped: %v", err)
	}
	cols, err := buildColumns(bars, specs)
	if err != nil {
		log.Fatalf("[srscan] columns: %v", err)
	}
	if err := report.Write(os.Stdout, summary, results, *limit, cols...); err != nil {
		log.Fatalf("[srscan] report: %v", err)
	}

	if *persist {
		if err := persistRun(ctx, *dbPath, runID, *symbol, *interval, params, results); err != nil {
			log.Fatalf("[srscan] persist: %v", err)
		}
	}
	if *publish {
		if !cfg.RedisEnabled() {
			log.Fatal("[srscan] --publish needs REDIS_ADDR")
		}
		if err := publishRun(ctx, cfg, results); err != nil {
			log.Fatalf("[srscan] publish: %v", err)
		}
	}
}

func loadBars(ctx context.Context, csvPath, dbPath, symbol, interval string, fromUnix int64) ([]model.Bar, error) {
	if csvPath != "" {
		res, err := csvload.LoadFile(csvPath, csvload.Options{Symbol: symbol, Interval: interval})
		if err != nil {
			return nil, err
		}
		if res.Flat > 0 || res.Missing > 0 {
			log.Printf("[srscan] %s: dropped %d flat and %d incomplete rows", csvPath, res.Flat, res.Missing)
		}
		return res.Bars, nil
	}
	reader, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return reader.ReadBars(ctx, symbol, interval, fromUnix)
}

type confluenceOpts struct {
	trendMA, trendBack, fastMA int
	bbPeriod, rsiPeriod        int
	bbDev                      float64
}

// addConfluence scores the detector's signals against trend, band-entry,
// RSI and moving-average crossover columns computed over the full history.
func addConfluence(s *report.Summary, bars []model.Bar, results []model.SignalResult, o confluenceOpts) error {
	closes := model.Closes(bars)
	ma := indicator.EMASeries(bars, o.trendMA)
	tr, err := trend.Classify(closes, ma, o.trendBack)
	if err != nil {
		return err
	}
	bands := indicator.BollingerSeries(bars, o.bbPeriod, o.bbDev)
	entries, err := trend.BollingerEntries(bars, tr, bands.Upper, bands.Lower)
	if err != nil {
		return err
	}
	rsi := indicator.RSISeries(bars, o.rsiPeriod)
	rsiSig, err := trend.RSISignals(closes, rsi, bands.Upper, bands.Lower, trend.DefaultRSIThresholds())
	if err != nil {
		return err
	}
	rsiEntries, err := trend.RSIBandEntries(bars, tr, rsiSig, bands.Upper, bands.Lower)
	if err != nil {
		return err
	}
	cross, err := trend.MACrossover(indicator.EMASeries(bars, o.fastMA), ma)
	if err != nil {
		return err
	}

	s.AddConfluence("trend", results, tr)
	s.AddConfluence("band entry", results, entries)
	s.AddConfluence("rsi signal", results, rsiSig)
	s.AddConfluence("rsi band entry", results, rsiEntries)
	s.AddConfluence("ema crossover", results, cross)
	return nil
}

func buildColumns(bars []model.Bar, specs []indicator.ColumnSpec) ([]report.Column, error) {
	cols := make([]report.Column, 0, len(specs))
	for _, c := range specs {
		vals, err := indicator.Column(bars, c.Name, c.Period)
		if err != nil {
			return nil, err
		}
		cols = append(cols, report.Column{Name: c.Label(), Values: vals})
	}
	return cols, nil
}

func persistRun(ctx context.Context, dbPath, runID, symbol, interval string, p levels.Params, results []model.SignalResult) error {
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer w.Close()

	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := w.SaveRun(ctx, sqlitestore.RunInfo{
		ID:        runID,
		Symbol:    symbol,
		Interval:  interval,
		Params:    raw,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := w.WriteSignals(ctx, results); err != nil {
		return err
	}
	slog.Info("run saved", append(logger.Attrs(ctx), "db", dbPath, "rows", len(results))...)
	return nil
}

func publishRun(ctx context.Context, cfg *config.Config, results []model.SignalResult) error {
	w, err := redisstore.New(redisstore.WriterConfig{
		Addr:         cfg.Storage.RedisAddr,
		Password:     cfg.Storage.RedisPassword,
		DB:           cfg.Storage.RedisDB,
		StreamMaxLen: cfg.Storage.StreamMaxLen,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.PublishBatch(ctx, results); err != nil {
		return err
	}
	nonZero := 0
	for _, r := range results {
		if r.Signal != model.SignalNone {
			nonZero++
		}
	}
	slog.Info("run published", append(logger.Attrs(ctx), "signals", nonZero)...)
	return nil
}
