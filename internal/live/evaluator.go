// Package live evaluates support/resistance signals bar by bar as finalized
// bars arrive, keeping only the history the detector needs per series.
package live

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"srsignals/internal/candle"
	"srsignals/internal/indicator"
	"srsignals/internal/levels"
	"srsignals/internal/model"
)

// ErrStaleBar is returned for a bar at or before the newest bar already held
// for its series.
var ErrStaleBar = errors.New("live: stale or duplicate bar")

// Config wires an Evaluator.
type Config struct {
	Detector   *levels.Detector
	Rejection  candle.RejectionParams
	Indicators *indicator.Engine // optional
	RunID      string
}

// Update is the outcome of one pushed bar.
type Update struct {
	Result     model.SignalResult
	Indicators []model.IndicatorResult
	// Warm is false while the series is shorter than the detector warmup;
	// Result.Signal is then always SignalNone.
	Warm bool
}

type history struct {
	bars      []model.Bar
	rejection []model.Signal
	total     int // bars ever appended
}

func (h *history) offset() int { return h.total - len(h.bars) }

// Evaluator is safe for concurrent use.
type Evaluator struct {
	det    *levels.Detector
	rej    candle.RejectionParams
	engine *indicator.Engine
	runID  string
	keep   int

	mu     sync.Mutex
	series map[string]*history

	// OnEvaluate, when set, is called after every warm evaluation.
	OnEvaluate func(r model.SignalResult, d time.Duration)
}

// New creates an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Detector == nil {
		return nil, errors.New("live: nil detector")
	}
	p := cfg.Detector.Params()
	return &Evaluator{
		det:    cfg.Detector,
		rej:    cfg.Rejection,
		engine: cfg.Indicators,
		runID:  cfg.RunID,
		keep:   max(cfg.Detector.Warmup(), p.WindowBackCandles) + 1,
		series: make(map[string]*history),
	}, nil
}

// Seed preloads finalized history for a series without evaluating it, so
// the next pushed bar is evaluated with a full lookback.
func (e *Evaluator) Seed(bars []model.Bar) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range bars {
		if _, err := e.appendLocked(b); err != nil {
			return err
		}
		if e.engine != nil {
			e.engine.Process(b)
		}
	}
	return nil
}

// Push appends a finalized bar and evaluates it as the newest index.
func (e *Evaluator) Push(b model.Bar) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.appendLocked(b)
	if err != nil {
		return Update{}, err
	}
	var up Update
	if e.engine != nil {
		up.Indicators = e.engine.Process(b)
	}

	local := len(h.bars) - 1
	global := h.offset() + local
	if global < e.det.Warmup() {
		up.Result = e.result(h, local, model.SignalResult{
			Signal:    model.SignalNone,
			Rejection: h.rejection[local],
		})
		return up, nil
	}

	start := time.Now()
	r, err := e.det.Evaluate(h.bars, h.rejection, local)
	if err != nil {
		return Update{}, fmt.Errorf("live %s bar %d: %w", b.Key(), global, err)
	}
	up.Result = e.result(h, local, r)
	up.Warm = true
	if e.OnEvaluate != nil {
		e.OnEvaluate(up.Result, time.Since(start))
	}
	return up, nil
}

// Peek previews indicator values for a forming bar. Levels are never
// scanned for it and no history changes.
func (e *Evaluator) Peek(b model.Bar) []model.IndicatorResult {
	if e.engine == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.ProcessPeek(b)
}

// Len returns the number of bars ever appended for symbol@interval.
func (e *Evaluator) Len(symbol, interval string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.series[model.SeriesKey(symbol, interval)]; ok {
		return h.total
	}
	return 0
}

func (e *Evaluator) appendLocked(b model.Bar) (*history, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	key := b.Key()
	h, ok := e.series[key]
	if !ok {
		h = &history{
			bars:      make([]model.Bar, 0, 2*e.keep),
			rejection: make([]model.Signal, 0, 2*e.keep),
		}
		e.series[key] = h
	}
	if n := len(h.bars); n > 0 && !b.TS.After(h.bars[n-1].TS) {
		return nil, fmt.Errorf("%w: %s at %s, newest %s", ErrStaleBar, key,
			b.TS.Format(time.RFC3339), h.bars[n-1].TS.Format(time.RFC3339))
	}

	if len(h.bars) >= 2*e.keep {
		drop := len(h.bars) - e.keep + 1
		h.bars = append(h.bars[:0], h.bars[drop:]...)
		h.rejection = append(h.rejection[:0], h.rejection[drop:]...)
	}
	h.bars = append(h.bars, b)
	h.rejection = append(h.rejection, candle.Rejection(b, e.rej))
	h.total++
	return h, nil
}

// result stamps series identity and the global index onto r.
func (e *Evaluator) result(h *history, local int, r model.SignalResult) model.SignalResult {
	b := h.bars[local]
	r.RunID = e.runID
	r.Symbol = b.Symbol
	r.Interval = b.Interval
	r.TS = b.TS
	r.Index = h.offset() + local
	return r
}
