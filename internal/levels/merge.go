package levels

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultMergeTolerance is the relative distance (0.1%) under which two
// adjacent levels are considered the same level.
const DefaultMergeTolerance = 0.001

// MergePolicy selects how near-duplicate levels are collapsed.
type MergePolicy uint8

const (
	// MergeSinglePass walks the list once. When level[i] is dropped the next
	// level slides into slot i and is compared only against its new right
	// neighbour, so a staircase of three or more close levels can leave an
	// adjacent pair inside tolerance.
	MergeSinglePass MergePolicy = iota
	// MergeFixedPoint re-checks after every drop, so on return no adjacent
	// pair is within tolerance.
	MergeFixedPoint
)

func (p MergePolicy) String() string {
	switch p {
	case MergeSinglePass:
		return "single-pass"
	case MergeFixedPoint:
		return "fixed-point"
	default:
		return "unknown"
	}
}

// ParseMergePolicy parses "single-pass" or "fixed-point".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-pass", "singlepass", "single":
		return MergeSinglePass, nil
	case "fixed-point", "fixedpoint", "fixed":
		return MergeFixedPoint, nil
	}
	return MergeSinglePass, fmt.Errorf("%w: unknown merge policy %q", ErrInvalidParams, s)
}

// MarshalText encodes the policy by name.
func (p MergePolicy) MarshalText() ([]byte, error) {
	if p > MergeFixedPoint {
		return nil, fmt.Errorf("%w: merge policy %d", ErrInvalidParams, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names ParseMergePolicy accepts.
func (p *MergePolicy) UnmarshalText(b []byte) error {
	v, err := ParseMergePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MergeLevels collapses adjacent levels of an already sorted list. For each
// adjacent pair the later element is dropped when
//
//	|level[i] - level[i-1]| / level[i] <= tol
//
// so the first element of a cluster in the caller's sort order survives.
// The input is not modified.
func MergeLevels(levels []float64, tol float64, policy MergePolicy) ([]float64, error) {
	if tol < 0 || math.IsNaN(tol) {
		return nil, fmt.Errorf("%w: merge tolerance %v", ErrInvalidParams, tol)
	}
	for i, lv := range levels {
		if lv <= 0 || math.IsNaN(lv) || math.IsInf(lv, 0) {
			return nil, fmt.Errorf("%w: level[%d]=%v", ErrInvalidLevel, i, lv)
		}
	}

	out := make([]float64, len(levels))
	copy(out, levels)

	switch policy {
	case MergeFixedPoint:
		for i := 1; i < len(out); {
			if withinTolerance(out[i-1], out[i], tol) {
				out = append(out[:i], out[i+1:]...)
				continue
			}
			i++
		}
	default:
		for i := 1; i < len(out); i++ {
			if withinTolerance(out[i-1], out[i], tol) {
				out = append(out[:i], out[i+1:]...)
			}
		}
	}
	return out, nil
}

func withinTolerance(prev, cur, tol float64) bool {
	return math.Abs(cur-prev)/cur <= tol
}

// LevelSet is the merged output of one aggregation.
type LevelSet struct {
	Supports    []float64 `json:"supports"`    // ascending, merged
	Resistances []float64 `json:"resistances"` // descending, merged
	Levels      []float64 `json:"levels"`      // combined, ascending, merged
}

// BuildLevelSet merges supports (ascending, lowest survives) and
// resistances (descending, highest survives) independently, then merges
// their ascending union once more to drop cross-list duplicates.
func BuildLevelSet(supports, resistances []float64, tol float64, policy MergePolicy) (LevelSet, error) {
	ss := append([]float64(nil), supports...)
	sort.Float64s(ss)
	ss, err := MergeLevels(ss, tol, policy)
	if err != nil {
		return LevelSet{}, fmt.Errorf("merge supports: %w", err)
	}

	rr := append([]float64(nil), resistances...)
	sort.Sort(sort.Reverse(sort.Float64Slice(rr)))
	rr, err = MergeLevels(rr, tol, policy)
	if err != nil {
		return LevelSet{}, fmt.Errorf("merge resistances: %w", err)
	}

	all := make([]float64, 0, len(ss)+len(rr))
	all = append(all, rr...)
	all = append(all, ss...)
	sort.Float64s(all)
	all, err = MergeLevels(all, tol, policy)
	if err != nil {
		return LevelSet{}, fmt.Errorf("merge combined: %w", err)
	}

	return LevelSet{Supports: ss, Resistances: rr, Levels: all}, nil
}
