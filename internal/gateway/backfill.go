package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"srsignals/internal/model"
)

// SignalCache serves signals already published to Redis. *redis.Writer
// implements it.
type SignalCache interface {
	Latest(ctx context.Context, symbol, interval string) (model.SignalResult, bool, error)
	Recent(ctx context.Context, symbol, interval string, count int64) ([]model.SignalResult, error)
}

// Backfill loads up to count recent signals per series from cache and
// broadcasts them oldest first, so a hub started in relay mode can replay
// signals published before it subscribed. It returns the number broadcast.
func Backfill(ctx context.Context, hub *Hub, cache SignalCache, series []SubscribeMsg, count int64) (int, error) {
	n := 0
	for _, s := range series {
		results, err := cache.Recent(ctx, s.Symbol, s.Interval, count)
		if err != nil {
			return n, fmt.Errorf("backfill %s: %w", model.SeriesKey(s.Symbol, s.Interval), err)
		}
		for _, r := range results {
			hub.Broadcast(r)
		}
		n += len(results)
	}
	return n, nil
}

// RegisterCacheRoutes mounts /api/signal/latest, which reads the newest
// published signal for one series from cache.
func RegisterCacheRoutes(mux Mux, cache SignalCache) {
	mux.Handle("/api/signal/latest", jsonHandler(func(r *http.Request) (interface{}, int) {
		q := r.URL.Query()
		symbol, interval := q.Get("symbol"), q.Get("interval")
		if symbol == "" || interval == "" {
			return errBody("symbol and interval are required"), http.StatusBadRequest
		}
		res, ok, err := cache.Latest(r.Context(), symbol, interval)
		if err != nil {
			log.Printf("[gateway] cached latest %s: %v", model.SeriesKey(symbol, interval), err)
			return errBody("cache error"), http.StatusInternalServerError
		}
		if !ok {
			return errBody("no signal"), http.StatusNotFound
		}
		return res, http.StatusOK
	}))
}
