// cmd/srlive drives the live signal pipeline from stored bars: bars are
// replayed in time order through a ring buffer into the per-series live
// evaluator, and every result is fanned out to SQLite, Redis, the WebSocket
// hub and the alert notifiers.
//
// Usage:
//
//	go run ./cmd/srlive --series=EURUSD:1d --from=1704067200 --speed=0
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"srsignals/config"
	"srsignals/internal/gateway"
	"srsignals/internal/indicator"
	"srsignals/internal/levels"
	"srsignals/internal/live"
	"srsignals/internal/logger"
	"srsignals/internal/marketdata/bus"
	"srsignals/internal/marketdata/replay"
	"srsignals/internal/metrics"
	"srsignals/internal/model"
	"srsignals/internal/notification"
	"srsignals/internal/ringbuf"
	redisstore "srsignals/internal/store/redis"
	sqlitestore "srsignals/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[srlive] config: %v", err)
	}

	seriesStr := flag.String("series", "", "Comma-separated SYMBOL:INTERVAL pairs (default: every stored series)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start live evaluation; earlier bars seed history")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	dbPath := flag.String("db", cfg.Storage.SQLitePath, "Path to SQLite database")
	indicatorCfg := flag.String("indicators", "", "Indicator specs: TYPE:PERIOD,... (default: SMA:20,EMA:9,RSI:14)")
	ringSize := flag.Int("ring", 4096, "Bar ring buffer capacity")
	relay := flag.Bool("relay", false, "Feed the WebSocket hub from Redis PubSub instead of in process")
	backfill := flag.Int("backfill", 100, "Recent signals per series loaded from the Redis stream in relay mode")
	flag.Parse()

	logger.Init("srlive", logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("[srlive] %v", err)
	}
	det, err := levels.NewDetector(params)
	if err != nil {
		log.Fatalf("[srlive] detector: %v", err)
	}

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	health.SetRedisEnabled(cfg.RedisEnabled())

	// ---- SQLite ----
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[srlive] sqlite reader: %v", err)
	}
	defer reader.Close()

	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: *dbPath,
		OnCommit: func(rows int, d time.Duration) {
			prom.SQLiteCommitDur.Observe(d.Seconds())
		},
	})
	if err != nil {
		log.Fatalf("[srlive] sqlite writer: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)

	series, err := resolveSeries(ctx, reader, *seriesStr)
	if err != nil {
		log.Fatalf("[srlive] %v", err)
	}
	keys := make([]string, len(series))
	for i, s := range series {
		keys[i] = model.SeriesKey(s.Symbol, s.Interval)
	}
	health.SetSeries(keys)

	rawParams, _ := json.Marshal(params)
	for _, s := range series {
		if err := sqlWriter.SaveRun(ctx, sqlitestore.RunInfo{
			ID: runID, Symbol: s.Symbol, Interval: s.Interval, Params: rawParams,
		}); err != nil {
			log.Fatalf("[srlive] save run: %v", err)
		}
	}

	// ---- Redis (optional) ----
	var redisWriter *redisstore.Writer
	var buffered *redisstore.BufferedWriter
	if cfg.RedisEnabled() {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:         cfg.Storage.RedisAddr,
			Password:     cfg.Storage.RedisPassword,
			DB:           cfg.Storage.RedisDB,
			StreamMaxLen: cfg.Storage.StreamMaxLen,
		})
		if err != nil {
			log.Printf("[srlive] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			health.SetRedisConnected(true)
			redisWriter.OnWrite = func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) }

			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
				log.Printf("[srlive] redis breaker %s -> %s", from, to)
			}
			buffered = redisstore.NewBufferedWriter(ctx, redisWriter, cb, 0)
			buffered.OnBuffer = prom.RedisBufferedWrites.Inc
		}
	}
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Live evaluator ----
	engine := indicator.NewEngine(indicatorConfigs(series, parseIndicatorSpecs(*indicatorCfg)))
	ev, err := live.New(live.Config{
		Detector:   det,
		Rejection:  cfg.Pipeline.Rejection,
		Indicators: engine,
		RunID:      runID,
	})
	if err != nil {
		log.Fatalf("[srlive] evaluator: %v", err)
	}
	ev.OnEvaluate = func(r model.SignalResult, d time.Duration) {
		prom.Evaluations.Inc()
		prom.EvalDur.Observe(d.Seconds())
		prom.LevelsPerEval.Observe(float64(r.LevelCount))
		if r.Signal != model.SignalNone {
			prom.SignalsTotal.WithLabelValues(r.Signal.String()).Inc()
		}
	}
	if *fromTS > 0 {
		if err := seedHistory(ctx, reader, ev, series, *fromTS); err != nil {
			log.Fatalf("[srlive] seed: %v", err)
		}
	}

	// ---- Fan-out to sinks ----
	fanout := bus.New(5000)
	fanout.OnDrop = func(name string) { prom.FanoutDropsTotal.WithLabelValues(name).Inc() }

	go sqlWriter.Run(ctx, fanout.Subscribe("sqlite", nil))
	if buffered != nil {
		go buffered.Run(ctx, fanout.Subscribe("redis", bus.NonZero))
	}

	hub := gateway.NewHub(cfg.Server.ReplaySize)
	hub.OnClientsChange = func(n int) { prom.WSClients.Set(float64(n)) }
	if *relay && redisWriter != nil {
		subs := make([]gateway.SubscribeMsg, len(series))
		for i, s := range series {
			subs[i] = gateway.SubscribeMsg{Symbol: s.Symbol, Interval: s.Interval}
		}
		if n, err := gateway.Backfill(ctx, hub, redisWriter, subs, int64(*backfill)); err != nil {
			log.Printf("[srlive] WARNING: %v", err)
		} else {
			log.Printf("[srlive] backfilled %d signals from redis", n)
		}
		go gateway.NewPubSubRouter(hub, redisWriter.Client()).Run(ctx)
	} else {
		go hub.Run(ctx, fanout.Subscribe("ws", bus.NonZero))
	}

	dispatcher := notification.NewDispatcher(10*time.Second, notifiers(cfg)...)
	dispatcher.OnResult = func(n, result string) { prom.AlertsSent.WithLabelValues(n, result).Inc() }
	go dispatcher.Run(ctx, fanout.Subscribe("alerts", bus.NonZero))

	resultCh := make(chan model.SignalResult, 5000)
	go fanout.Run(ctx, resultCh)

	// ---- HTTP: metrics, health, REST, WebSocket ----
	srv := metrics.NewServer(cfg.Server.MetricsAddr, health, prometheus.DefaultGatherer)
	gateway.RegisterRoutes(srv, hub, reader)
	if redisWriter != nil {
		gateway.RegisterCacheRoutes(srv, redisWriter)
	}
	srv.Start()

	// ---- Replay -> ring -> evaluator ----
	ring := ringbuf.New(*ringSize)
	barCh := make(chan model.Bar, 1000)
	go func() {
		defer close(barCh)
		n, err := replay.New(reader).Run(ctx, series, *fromTS, *speed, barCh)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[srlive] replay error: %v", err)
		}
		slog.Info("replay finished", append(logger.Attrs(ctx), "bars", n)...)
	}()
	go func() {
		defer ring.CloseProducer()
		for b := range barCh {
			if err := ring.PushWait(ctx, b, time.Millisecond); err != nil {
				return
			}
		}
	}()
	go reportOverflow(ctx, ring, prom)

	go func() {
		defer close(resultCh)
		err := ring.Drain(ctx, 5*time.Millisecond, func(b model.Bar) {
			up, err := ev.Push(b)
			if err != nil {
				if errors.Is(err, live.ErrStaleBar) {
					prom.StaleBars.Inc()
					return
				}
				log.Printf("[srlive] %s: %v", b.Key(), err)
				return
			}
			prom.BarsIngested.WithLabelValues(b.Key()).Inc()
			health.SetLastBarTime(b.TS)
			for _, ind := range up.Indicators {
				if ind.Ready {
					slog.Debug("indicator", "series", b.Key(), "name", ind.Name, "value", ind.Value)
				}
			}
			select {
			case resultCh <- up.Result:
			case <-ctx.Done():
			}
		})
		if err == nil {
			health.SetReplayDone(true)
			log.Println("[srlive] replay drained; serving until shutdown")
		}
	}()

	log.Printf("[srlive] pipeline ready: %d series, run=%s", len(series), runID)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[srlive] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
	if buffered != nil {
		if err := buffered.Close(shutdownCtx); err != nil {
			log.Printf("[srlive] %v", err)
		}
	}
	if redisWriter != nil {
		redisWriter.Close()
	}
	log.Println("[srlive] shutdown complete.")
}

// resolveSeries parses SYMBOL:INTERVAL pairs, or lists every stored series
// when s is empty.
func resolveSeries(ctx context.Context, reader *sqlitestore.Reader, s string) ([]replay.Series, error) {
	var out []replay.Series
	if strings.TrimSpace(s) == "" {
		pairs, err := reader.Series(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			out = append(out, replay.Series{Symbol: p[0], Interval: p[1]})
		}
	} else {
		for _, part := range strings.Split(s, ",") {
			sym, iv, ok := strings.Cut(strings.TrimSpace(part), ":")
			if !ok || sym == "" || iv == "" {
				return nil, errors.New("invalid --series entry " + strconv.Quote(part))
			}
			out = append(out, replay.Series{Symbol: sym, Interval: iv})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no series to run")
	}
	return out, nil
}

// seedHistory loads the bars before fromUnix so the first live bar is
// evaluated with a full lookback.
func seedHistory(ctx context.Context, reader *sqlitestore.Reader, ev *live.Evaluator, series []replay.Series, fromUnix int64) error {
	cutoff := time.Unix(fromUnix, 0)
	for _, s := range series {
		bars, err := reader.ReadBars(ctx, s.Symbol, s.Interval, 0)
		if err != nil {
			return err
		}
		n := 0
		for n < len(bars) && bars[n].TS.Before(cutoff) {
			n++
		}
		if err := ev.Seed(bars[:n]); err != nil {
			return err
		}
		log.Printf("[srlive] seeded %s with %d bars", model.SeriesKey(s.Symbol, s.Interval), n)
	}
	return nil
}

func reportOverflow(ctx context.Context, ring *ringbuf.Ring, prom *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ring.Overflow(); n > last {
				prom.RingBufOverflow.Add(float64(n - last))
				last = n
			}
		}
	}
}

func notifiers(cfg *config.Config) []notification.Notifier {
	out := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Alerts.WebhookURL != "" {
		out = append(out, notification.NewWebhookNotifier(cfg.Alerts.WebhookURL))
	}
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != "" {
		out = append(out, notification.NewTelegramNotifier(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID))
	}
	return out
}

func indicatorConfigs(series []replay.Series, specs []indicator.Config) []indicator.IntervalConfig {
	seen := make(map[string]bool)
	var out []indicator.IntervalConfig
	for _, s := range series {
		if seen[s.Interval] {
			continue
		}
		seen[s.Interval] = true
		out = append(out, indicator.IntervalConfig{Interval: s.Interval, Indicators: specs})
	}
	return out
}

func parseIndicatorSpecs(s string) []indicator.Config {
	if s == "" {
		return []indicator.Config{
			{Type: "SMA", Period: 20},
			{Type: "EMA", Period: 9},
			{Type: "RSI", Period: 14},
		}
	}
	var configs []indicator.Config
	for _, part := range strings.Split(s, ",") {
		typ, period, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(period))
		if err != nil || n <= 0 {
			continue
		}
		configs = append(configs, indicator.Config{
			Type:   strings.ToUpper(strings.TrimSpace(typ)),
			Period: n,
		})
	}
	return configs
}
