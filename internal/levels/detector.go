package levels

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"srsignals/internal/model"
)

// Params configures a Detector.
type Params struct {
	N1                int            `toml:"n1" json:"n1"`                                 // pivot bars before
	N2                int            `toml:"n2" json:"n2"`                                 // pivot bars after
	LevelBackCandles  int            `toml:"level_back_candles" json:"level_back_candles"` // pivot scan depth
	WindowBackCandles int            `toml:"window_back_candles" json:"window_back_candles"`
	MergeTolerance    float64        `toml:"merge_tolerance" json:"merge_tolerance"`
	ProximityPct      float64        `toml:"proximity_pct" json:"proximity_pct"`
	Boundary          BoundaryPolicy `toml:"-" json:"boundary"`
	Merge             MergePolicy    `toml:"-" json:"merge"`
}

// DefaultParams returns the settings the research scripts ran with.
func DefaultParams() Params {
	return Params{
		N1:                8,
		N2:                8,
		LevelBackCandles:  60,
		WindowBackCandles: 8,
		MergeTolerance:    DefaultMergeTolerance,
		ProximityPct:      DefaultProximityPct,
		Boundary:          BoundaryTruncate,
		Merge:             MergeSinglePass,
	}
}

// Validate rejects negative sizes and tolerances.
func (p Params) Validate() error {
	if p.N1 < 0 || p.N2 < 0 || p.LevelBackCandles < 0 || p.WindowBackCandles < 0 {
		return fmt.Errorf("%w: n1=%d n2=%d level_back=%d window_back=%d",
			ErrInvalidParams, p.N1, p.N2, p.LevelBackCandles, p.WindowBackCandles)
	}
	if p.MergeTolerance < 0 || math.IsNaN(p.MergeTolerance) || p.ProximityPct < 0 || math.IsNaN(p.ProximityPct) {
		return fmt.Errorf("%w: merge_tolerance=%v proximity_pct=%v",
			ErrInvalidParams, p.MergeTolerance, p.ProximityPct)
	}
	return nil
}

// Detector evaluates the full support/resistance pipeline for bar indices.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	params Params
	agg    Aggregator
}

// NewDetector validates p and builds a Detector.
func NewDetector(p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		params: p,
		agg: Aggregator{
			Scanner:          Scanner{N1: p.N1, N2: p.N2, Policy: p.Boundary},
			LevelBackCandles: p.LevelBackCandles,
			Tolerance:        p.MergeTolerance,
			Merge:            p.Merge,
		},
	}, nil
}

// Params returns the detector configuration.
func (d *Detector) Params() Params { return d.params }

// Warmup is the first index whose pivot window is fully inside the series.
func (d *Detector) Warmup() int {
	return d.params.LevelBackCandles + d.params.N1
}

// Levels returns the merged level set used for index l.
func (d *Detector) Levels(bars []model.Bar, l int) (LevelSet, error) {
	return d.agg.Aggregate(bars, l)
}

// Evaluate runs the pipeline for index l. Only bars[0..l] are read.
func (d *Detector) Evaluate(bars []model.Bar, rejection []model.Signal, l int) (model.SignalResult, error) {
	if len(bars) == 0 {
		return model.SignalResult{}, ErrEmptySeries
	}
	if len(rejection) != len(bars) {
		return model.SignalResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(rejection), len(bars))
	}
	if l < 0 || l >= len(bars) {
		return model.SignalResult{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, l, len(bars))
	}

	res := baseResult(bars, rejection, l)
	set, err := d.agg.Aggregate(bars, l)
	if err != nil {
		return res, err
	}
	res.LevelCount = len(set.Levels)

	bar := bars[l]
	tol := ProximityTolerance(bar.Close, d.params.ProximityPct)
	dec := Decision{Rejection: rejection[l]}

	if lvl, ok := CloseToResistance(bar, set.Levels, tol); ok {
		below, err := IsBelowResistance(bars, l, d.params.WindowBackCandles, lvl, d.params.Boundary)
		if err != nil {
			return res, err
		}
		dec.Resistance, dec.BelowResistance = lvl, below
		res.Resistance = lvl
	}
	if lvl, ok := CloseToSupport(bar, set.Levels, tol); ok {
		above, err := IsAboveSupport(bars, l, d.params.WindowBackCandles, lvl, d.params.Boundary)
		if err != nil {
			return res, err
		}
		dec.Support, dec.AboveSupport = lvl, above
		res.Support = lvl
	}

	res.Signal = Decide(dec)
	return res, nil
}

// EvaluateAll evaluates every index of the series. Indices below Warmup()
// get SignalNone. Indices are independent and are spread over workers
// goroutines (workers <= 0 uses GOMAXPROCS); each writes its own slot.
func (d *Detector) EvaluateAll(ctx context.Context, bars []model.Bar, rejection []model.Signal, workers int) ([]model.SignalResult, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	if len(rejection) != len(bars) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(rejection), len(bars))
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]model.SignalResult, len(bars))
	start := d.Warmup()
	if start > len(bars) {
		start = len(bars)
	}
	for l := 0; l < start; l++ {
		out[l] = baseResult(bars, rejection, l)
	}

	remaining := len(bars) - start
	if remaining == 0 {
		return out, nil
	}
	chunk := (remaining + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := start; lo < len(bars); lo += chunk {
		hi := min(lo+chunk, len(bars))
		g.Go(func() error {
			for l := lo; l < hi; l++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := d.Evaluate(bars, rejection, l)
				if err != nil {
					return fmt.Errorf("evaluate bar %d: %w", l, err)
				}
				out[l] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func baseResult(bars []model.Bar, rejection []model.Signal, l int) model.SignalResult {
	b := &bars[l]
	return model.SignalResult{
		Symbol:    b.Symbol,
		Interval:  b.Interval,
		Index:     l,
		TS:        b.TS,
		Signal:    model.SignalNone,
		Rejection: rejection[l],
	}
}

// Signals projects results onto their signal values.
func Signals(results []model.SignalResult) []model.Signal {
	out := make([]model.Signal, len(results))
	for i := range results {
		out[i] = results[i].Signal
	}
	return out
}
