package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SignalsTotal.WithLabelValues("bullish").Inc()
	m.Evaluations.Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"srsignals_signals_total", "srsignals_evaluations_total"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()
	h.SetSQLiteOK(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("redis disabled + sqlite ok: got %d", rec.Code)
	}

	h.SetRedisEnabled(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("redis down: got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg).StaleBars.Inc()
	h := NewHealthStatus()
	h.SetSQLiteOK(true)
	s := NewServer(":0", h, reg)
	s.Handle("/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	}))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for path, want := range map[string]string{
		"/metrics": "srsignals_stale_bars_total 1",
		"/healthz": `"status":"healthy"`,
		"/ping":    "pong",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, resp.Body)
		resp.Body.Close()
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%s: missing %q in %q", path, want, buf.String())
		}
	}
}
