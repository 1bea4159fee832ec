package indicator

import (
	"context"
	"math"
	"testing"
	"time"

	"srsignals/internal/model"
)

func makeBar(symbol, interval string, close float64) model.Bar {
	return model.Bar{
		Symbol:   symbol,
		Interval: interval,
		TS:       time.Now().UTC(),
		Open:     close,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
		Volume:   100,
	}
}

func TestEngine_SMA20(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{{Type: "SMA", Period: 20}}},
	})

	for i := 0; i < 25; i++ {
		results := engine.Process(makeBar("SBIN", "1h", 100))
		if len(results) != 1 {
			t.Fatalf("bar %d: expected 1 result, got %d", i, len(results))
		}
		if i < 19 {
			if results[0].Ready {
				t.Errorf("bar %d: ready too early", i)
			}
			continue
		}
		if math.Abs(results[0].Value-100.0) > 0.001 {
			t.Errorf("bar %d: expected SMA=100.0, got %.4f", i, results[0].Value)
		}
		if results[0].Name != "SMA_20" {
			t.Errorf("bar %d: expected name=SMA_20, got %s", i, results[0].Name)
		}
	}
}

func TestEngine_MultiIndicator(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{
			{Type: "SMA", Period: 5},
			{Type: "EMA", Period: 5},
			{Type: "RSI", Period: 14},
			{Type: "atr", Period: 14},
		}},
	})

	var last []model.IndicatorResult
	for i := 0; i < 20; i++ {
		last = engine.Process(makeBar("A", "1h", 100+float64(i)))
		if len(last) != 4 {
			t.Fatalf("bar %d: expected 4 results, got %d", i, len(last))
		}
	}
	if last[3].Name != "ATR_14" || !last[3].Ready {
		t.Errorf("unexpected ATR result %+v", last[3])
	}
}

func TestEngine_MultiInterval(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{{Type: "SMA", Period: 5}}},
		{Interval: "1d", Indicators: []Config{{Type: "EMA", Period: 10}}},
	})

	if r := engine.Process(makeBar("X", "1h", 50)); len(r) != 1 || r[0].Interval != "1h" {
		t.Fatalf("1h: got %+v", r)
	}
	if r := engine.Process(makeBar("X", "1d", 50)); len(r) != 1 || r[0].Name != "EMA_10" {
		t.Fatalf("1d: got %+v", r)
	}
	if r := engine.Process(makeBar("X", "15m", 50)); len(r) != 0 {
		t.Errorf("expected no results for unconfigured interval, got %d", len(r))
	}
}

func TestEngine_SeparateSeriesState(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{{Type: "SMA", Period: 2}}},
	})
	engine.Process(makeBar("A", "1h", 10))
	engine.Process(makeBar("B", "1h", 1000))
	a := engine.Process(makeBar("A", "1h", 20))
	if math.Abs(a[0].Value-15) > 1e-9 {
		t.Errorf("series A mixed with B: %v", a[0].Value)
	}
}

func TestEngine_Run(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{{Type: "SMA", Period: 1}}},
	})
	barCh := make(chan model.Bar, 2)
	resCh := make(chan model.IndicatorResult, 2)
	barCh <- makeBar("Y", "1h", 42)
	close(barCh)

	engine.Run(context.Background(), barCh, resCh)

	select {
	case r := <-resCh:
		if r.Value != 42 {
			t.Errorf("got %v, want 42", r.Value)
		}
	default:
		t.Fatal("expected one result")
	}
}

func TestProcessPeek(t *testing.T) {
	engine := NewEngine([]IntervalConfig{
		{Interval: "1h", Indicators: []Config{{Type: "SMA", Period: 5}}},
	})

	if r := engine.ProcessPeek(makeBar("T1", "1h", 110)); r != nil {
		t.Fatalf("expected nil before any Process, got %d", len(r))
	}

	for i := 0; i < 5; i++ {
		engine.Process(makeBar("T1", "1h", 100))
	}
	results := engine.ProcessPeek(makeBar("T1", "1h", 110))
	if len(results) != 1 {
		t.Fatalf("expected 1 peek result, got %d", len(results))
	}
	// (100*4 + 110)/5
	if math.Abs(results[0].Value-102.0) > 0.01 {
		t.Errorf("expected peek value=102.00, got %.4f", results[0].Value)
	}

	after := engine.Process(makeBar("T1", "1h", 100))
	if math.Abs(after[0].Value-100) > 0.001 {
		t.Errorf("ProcessPeek mutated state: %.4f", after[0].Value)
	}
}
