package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"srsignals/internal/model"
)

func sample() ([]model.Bar, []model.SignalResult) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 99, 98, 101, 103, 104, 102}
	bars := make([]model.Bar, len(closes))
	results := make([]model.SignalResult, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Symbol: "EURUSD", Interval: "1d", TS: t0.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c}
		results[i] = model.SignalResult{RunID: "run-1", Symbol: "EURUSD", Interval: "1d", Index: i, TS: bars[i].TS}
	}
	results[0].Signal, results[0].Resistance = model.SignalBearish, 100.9
	results[2].Signal, results[2].Support = model.SignalBullish, 97.1
	return bars, results
}

func TestSummarize(t *testing.T) {
	bars, results := sample()
	s := Summarize(bars, results, 2)
	if s.Bullish != 1 || s.Bearish != 1 || s.Bars != len(bars) {
		t.Fatalf("counts: %+v", s)
	}
	// bar 0: mean(99,98) < 100 -> bearish target, agrees
	// bar 2: mean(101,103) > 98 -> bullish target, agrees
	if s.Hit.Total != 2 || s.Hit.Equal != 2 {
		t.Errorf("hit rate: %+v", s.Hit)
	}
	if s.RunID != "run-1" || s.Symbol != "EURUSD" {
		t.Errorf("identity: %+v", s)
	}
}

func TestAddConfluence(t *testing.T) {
	bars, results := sample()
	s := Summarize(bars, results, 2)
	s.AddConfluence("trend", results, []model.Signal{1, 0, 1, 0, 0, 0, 0})
	s.AddConfluence("short", results, []model.Signal{1})
	if s.Confluence["trend"] != 1 {
		t.Errorf("trend confluence = %d, want 1", s.Confluence["trend"])
	}
	if _, ok := s.Confluence["short"]; ok {
		t.Error("misaligned column should be ignored")
	}
	if out := SummaryTable(s); !strings.Contains(out, "agrees with trend") || !strings.Contains(out, "50.0% of 2") {
		t.Errorf("summary table:\n%s", out)
	}
}

func TestSignalTable(t *testing.T) {
	_, results := sample()
	out := SignalTable(results, 0)
	for _, want := range []string{"bearish", "bullish", "100.9000", "97.1000", "2024-01-04"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	limited := SignalTable(results, 1)
	if strings.Contains(limited, "bullish") {
		t.Errorf("limit ignored:\n%s", limited)
	}
}

func TestWrite(t *testing.T) {
	bars, results := sample()
	var buf bytes.Buffer
	if err := Write(&buf, Summarize(bars, results, 2), results, 0); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "target agreement") {
		t.Errorf("summary missing:\n%s", buf.String())
	}
}

func TestSignalTableColumns(t *testing.T) {
	_, results := sample()
	cols := []Column{
		{Name: "ATR_3", Values: []float64{0, 0, 1.25, 1.5, 1.5, 1.5, 1.5}},
		{Name: "SHORT", Values: []float64{-42.5}},
	}
	out := SignalTable(results, 0, cols...)
	for _, want := range []string{"ATR_3", "SHORT", "1.2500", "-42.5000"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
