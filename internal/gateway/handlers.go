package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"srsignals/internal/model"
	sqlitestore "srsignals/internal/store/sqlite"
)

// Mux is the subset of http.ServeMux the routes need.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// SignalStore serves persisted runs. *sqlite.Reader implements it.
type SignalStore interface {
	LatestRun(ctx context.Context, symbol, interval string) (sqlitestore.RunInfo, error)
	ReadSignals(ctx context.Context, runID string) ([]model.SignalResult, error)
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes mounts /ws and the REST endpoints on mux. store may be nil,
// in which case the run endpoints are not mounted.
func RegisterRoutes(mux Mux, hub *Hub, store SignalStore) {
	mux.Handle("/ws", http.HandlerFunc(hub.HandleWS))

	mux.Handle("/api/latest", jsonHandler(func(r *http.Request) (interface{}, int) {
		return hub.Latest(), http.StatusOK
	}))

	mux.Handle("/api/missed", jsonHandler(func(r *http.Request) (interface{}, int) {
		q := r.URL.Query()
		channel := q.Get("channel")
		if channel == "" {
			channel = SubscribeMsg{Symbol: q.Get("symbol"), Interval: q.Get("interval")}.Channel()
		}
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			return errBody("from and to must be integers with from <= to"), http.StatusBadRequest
		}
		envs := hub.ReplayRange(channel, from, to)
		resp := MissedResponse{Channel: channel, From: from, To: to, Envelopes: make([]json.RawMessage, len(envs))}
		for i, e := range envs {
			resp.Envelopes[i] = e
		}
		return resp, http.StatusOK
	}))

	if store == nil {
		return
	}

	mux.Handle("/api/runs/latest", jsonHandler(func(r *http.Request) (interface{}, int) {
		q := r.URL.Query()
		run, err := store.LatestRun(r.Context(), q.Get("symbol"), q.Get("interval"))
		if errors.Is(err, sqlitestore.ErrNoRun) {
			return errBody(err.Error()), http.StatusNotFound
		}
		if err != nil {
			log.Printf("[gateway] latest run: %v", err)
			return errBody("store error"), http.StatusInternalServerError
		}
		return run, http.StatusOK
	}))

	mux.Handle("/api/signals", jsonHandler(func(r *http.Request) (interface{}, int) {
		q := r.URL.Query()
		runID := q.Get("run_id")
		if runID == "" {
			return errBody("run_id is required"), http.StatusBadRequest
		}
		results, err := store.ReadSignals(r.Context(), runID)
		if err != nil {
			log.Printf("[gateway] read signals %s: %v", runID, err)
			return errBody("store error"), http.StatusInternalServerError
		}
		if q.Get("nonzero") == "1" {
			kept := results[:0]
			for _, res := range results {
				if res.Signal != model.SignalNone {
					kept = append(kept, res)
				}
			}
			results = kept
		}
		return results, http.StatusOK
	}))
}

func jsonHandler(fn func(r *http.Request) (interface{}, int)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, status := fn(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
