package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"srsignals/internal/model"
)

var _ model.BarReader = (*Reader)(nil)
var _ model.BarWriter = (*Writer)(nil)
var _ model.SignalWriter = (*Writer)(nil)

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.db")
	w, err := New(WriterConfig{DBPath: path, BatchSize: 2, FlushDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func testBars(n int) []model.Bar {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Bar, n)
	for i := range out {
		c := 1.10 + float64(i)*0.001
		out[i] = model.Bar{Symbol: "EURUSD", Interval: "1d", TS: t0.AddDate(0, 0, i),
			Open: c - 0.0005, High: c + 0.002, Low: c - 0.002, Close: c, Volume: float64(100 * i)}
	}
	return out
}

func TestBarsRoundTrip(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	bars := testBars(5)

	if err := w.WriteBars(ctx, bars); err != nil {
		t.Fatal(err)
	}
	// upsert is idempotent
	if err := w.WriteBars(ctx, bars[:2]); err != nil {
		t.Fatal(err)
	}

	got, err := r.ReadBars(ctx, "EURUSD", "1d", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(bars) {
		t.Fatalf("got %d bars, want %d", len(got), len(bars))
	}
	for i := range got {
		if !sameBar(got[i], bars[i]) {
			t.Errorf("bar %d: got %+v, want %+v", i, got[i], bars[i])
		}
	}

	from, err := r.ReadBars(ctx, "EURUSD", "1d", bars[3].TS.Unix())
	if err != nil || len(from) != 2 {
		t.Errorf("from filter: %d bars, %v", len(from), err)
	}

	last, err := w.LastBarTime(ctx, "EURUSD", "1d")
	if err != nil || !last.Equal(bars[4].TS) {
		t.Errorf("LastBarTime = %v, %v", last, err)
	}
	series, err := r.Series(ctx)
	if err != nil || len(series) != 1 || series[0] != [2]string{"EURUSD", "1d"} {
		t.Errorf("Series = %v, %v", series, err)
	}
}

func sameBar(a, b model.Bar) bool {
	ta, tb := a.TS, b.TS
	a.TS, b.TS = time.Time{}, time.Time{}
	return ta.Equal(tb) && a == b
}

func TestWriteBarsRejectsInvalid(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()
	bars := testBars(3)
	bars[1].High = bars[1].Low - 1

	if err := w.WriteBars(ctx, bars); !errors.Is(err, model.ErrInvalidBar) {
		t.Fatalf("got %v, want ErrInvalidBar", err)
	}
	got, _ := r.ReadBars(ctx, "EURUSD", "1d", 0)
	if len(got) != 0 {
		t.Errorf("invalid batch partially written: %d bars", len(got))
	}
}

func TestRunsAndSignals(t *testing.T) {
	w, r := openPair(t)
	ctx := context.Background()

	if _, err := r.LatestRun(ctx, "EURUSD", "1d"); !errors.Is(err, ErrNoRun) {
		t.Fatalf("empty: got %v", err)
	}

	params, _ := json.Marshal(map[string]int{"n1": 8})
	older := RunInfo{ID: "a", Symbol: "EURUSD", Interval: "1d", Params: params, CreatedAt: time.Unix(100, 0)}
	newer := RunInfo{ID: "b", Symbol: "EURUSD", Interval: "1d", Params: params, CreatedAt: time.Unix(200, 0)}
	for _, run := range []RunInfo{newer, older} {
		if err := w.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := r.LatestRun(ctx, "EURUSD", "1d")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "b" || string(latest.Params) != string(params) {
		t.Errorf("latest = %+v", latest)
	}

	bars := testBars(3)
	results := []model.SignalResult{
		{RunID: "b", Symbol: "EURUSD", Interval: "1d", Index: 2, TS: bars[2].TS, Signal: model.SignalBearish, Rejection: model.SignalBearish, Resistance: 1.105, LevelCount: 3},
		{RunID: "b", Symbol: "EURUSD", Interval: "1d", Index: 1, TS: bars[1].TS},
	}
	if err := w.WriteSignals(ctx, results); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadSignals(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	want := results[0]
	if len(got) != 2 || got[0].Index != 1 || !got[1].TS.Equal(want.TS) {
		t.Fatalf("signals = %+v", got)
	}
	got[1].TS = want.TS
	if got[1] != want {
		t.Errorf("signals = %+v", got)
	}
}

func TestRunBatchesChannel(t *testing.T) {
	w, r := openPair(t)
	var commits int
	w.cfg.OnCommit = func(rows int, _ time.Duration) { commits++ }

	ch := make(chan model.SignalResult, 8)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ch <- model.SignalResult{RunID: "live", Symbol: "X", Interval: "1h", Index: i, TS: ts.Add(time.Duration(i) * time.Hour)}
	}
	close(ch)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	got, err := r.ReadSignals(context.Background(), "live")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("got %d signals, want 5", len(got))
	}
	if commits < 3 {
		t.Errorf("expected batches of 2, got %d commits", commits)
	}
}
