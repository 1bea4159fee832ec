package levels

import (
	"fmt"

	"srsignals/internal/model"
)

// Aggregator collects pivots from a trailing window and merges them into a
// LevelSet.
type Aggregator struct {
	Scanner          Scanner
	LevelBackCandles int
	Tolerance        float64
	Merge            MergePolicy
}

// ScanRange returns the inclusive candidate range [l-LevelBackCandles, l-N2]
// for target index l after applying the boundary policy. empty is true when
// no candidate remains.
func (a Aggregator) ScanRange(n, l int) (from, to int, empty bool, err error) {
	if n == 0 {
		return 0, 0, true, ErrEmptySeries
	}
	if l < 0 || l >= n {
		return 0, 0, true, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, l, n)
	}
	from, to = l-a.LevelBackCandles, l-a.Scanner.N2
	if from < 0 {
		if a.Scanner.Policy == BoundaryError {
			return 0, 0, true, fmt.Errorf("%w: level window starts at %d", ErrWindowOutOfRange, from)
		}
		from = 0
	}
	return from, to, to < from, nil
}

// Aggregate scans the trailing window ending at l and returns its merged
// levels. Only bars at or before l are read, so the result for l does not
// change as later bars arrive.
func (a Aggregator) Aggregate(bars []model.Bar, l int) (LevelSet, error) {
	from, to, empty, err := a.ScanRange(len(bars), l)
	if err != nil {
		return LevelSet{}, err
	}
	if empty {
		return LevelSet{}, nil
	}

	pivots, err := a.Scanner.Pivots(bars[:l+1], from, to)
	if err != nil {
		return LevelSet{}, fmt.Errorf("scan [%d,%d]: %w", from, to, err)
	}

	var supports, resistances []float64
	for _, p := range pivots {
		switch p.Kind {
		case model.Support:
			supports = append(supports, p.Price)
		case model.Resistance:
			resistances = append(resistances, p.Price)
		}
	}
	return BuildLevelSet(supports, resistances, a.Tolerance, a.Merge)
}
