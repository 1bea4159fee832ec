package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"srsignals/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultStreamMaxLen = 5000
	defaultLatestTTL    = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr         string // Redis address, e.g. "localhost:6379"
	Password     string
	DB           int
	StreamMaxLen int64         // approximate XADD trim length per series
	LatestTTL    time.Duration // expiry of the latest-signal key
}

// Writer publishes signal results to Redis Streams, a latest key and PubSub.
type Writer struct {
	client    *goredis.Client
	maxLen    int64
	latestTTL time.Duration

	// OnWrite, when set, receives the duration of every pipeline round trip.
	OnWrite func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	ttl := cfg.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, maxLen: maxLen, latestTTL: ttl}, nil
}

// Publish writes one result as XADD + SET + PUBLISH in a single pipeline.
// SignalNone results are ignored.
func (w *Writer) Publish(ctx context.Context, r model.SignalResult) error {
	if r.Signal == model.SignalNone {
		return nil
	}
	return w.PublishBatch(ctx, []model.SignalResult{r})
}

// PublishBatch pipelines every non-zero result into one round trip.
func (w *Writer) PublishBatch(ctx context.Context, results []model.SignalResult) error {
	pipe := w.client.Pipeline()
	queued := 0
	for i := range results {
		r := &results[i]
		if r.Signal == model.SignalNone {
			continue
		}
		data := string(r.JSON())
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: r.StreamKey(),
			MaxLen: w.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Set(ctx, r.LatestKey(), data, w.latestTTL)
		pipe.Publish(ctx, r.PubSubChannel(), data)
		queued++
	}
	if queued == 0 {
		return nil
	}

	start := time.Now()
	_, err := pipe.Exec(ctx)
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("redis signal pipeline (%d results): %w", queued, err)
	}
	return nil
}

// Latest returns the newest published signal for a series, or ok=false when
// the key is missing or expired.
func (w *Writer) Latest(ctx context.Context, symbol, interval string) (model.SignalResult, bool, error) {
	key := (&model.SignalResult{Symbol: symbol, Interval: interval}).LatestKey()
	data, err := w.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return model.SignalResult{}, false, nil
	}
	if err != nil {
		return model.SignalResult{}, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var r model.SignalResult
	if err := unmarshalResult(data, &r); err != nil {
		return model.SignalResult{}, false, err
	}
	return r, true, nil
}

// Recent returns up to count of the newest stream entries for a series,
// oldest first.
func (w *Writer) Recent(ctx context.Context, symbol, interval string, count int64) ([]model.SignalResult, error) {
	key := (&model.SignalResult{Symbol: symbol, Interval: interval}).StreamKey()
	msgs, err := w.client.XRevRangeN(ctx, key, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", key, err)
	}
	out := make([]model.SignalResult, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var r model.SignalResult
		if err := unmarshalResult([]byte(raw), &r); err != nil {
			log.Printf("[redis] skip entry %s: %v", msgs[i].ID, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
