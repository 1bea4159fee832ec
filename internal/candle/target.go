package candle

import "srsignals/internal/model"

// DefaultTargetBars is the look-ahead used when scoring signals.
const DefaultTargetBars = 4

// PriceTarget compares the mean close of bars i+1..i+n with bars[i].Close:
// bearish when lower, bullish when higher. ok is false when fewer than n
// bars follow i.
func PriceTarget(bars []model.Bar, i, n int) (model.Signal, bool) {
	if n <= 0 || i < 0 || i+n >= len(bars) {
		return model.SignalNone, false
	}
	var sum float64
	for j := i + 1; j <= i+n; j++ {
		sum += bars[j].Close
	}
	avg := sum / float64(n)
	switch {
	case avg < bars[i].Close:
		return model.SignalBearish, true
	case avg > bars[i].Close:
		return model.SignalBullish, true
	}
	return model.SignalNone, true
}

// PriceTargets evaluates PriceTarget for every index; indices without
// enough look-ahead are none.
func PriceTargets(bars []model.Bar, n int) []model.Signal {
	out := make([]model.Signal, len(bars))
	for i := range bars {
		out[i], _ = PriceTarget(bars, i, n)
	}
	return out
}

// Stats scores a signal series.
type Stats struct {
	Total     int     `json:"total"`
	Equal     int     `json:"equal"`
	Different int     `json:"different"`
	EqualPct  float64 `json:"equal_pct"`
	DiffPct   float64 `json:"diff_pct"`
}

// HitRate counts non-zero signals that agree with targets at the same index.
func HitRate(signals, targets []model.Signal) Stats {
	var s Stats
	n := min(len(signals), len(targets))
	for i := 0; i < n; i++ {
		if signals[i] == model.SignalNone {
			continue
		}
		s.Total++
		if signals[i] == targets[i] {
			s.Equal++
		} else {
			s.Different++
		}
	}
	if s.Total > 0 {
		s.EqualPct = float64(s.Equal) / float64(s.Total) * 100
		s.DiffPct = float64(s.Different) / float64(s.Total) * 100
	}
	return s
}

// Follow is the next-bar direction after a given signal value.
type Follow struct {
	Total   int     `json:"total"`
	Up      int     `json:"up"`
	Down    int     `json:"down"`
	UpPct   float64 `json:"up_pct"`
	DownPct float64 `json:"down_pct"`
}

// FollowThrough counts, for each bar labelled want, whether the next bar
// closed above or below its open. The last bar has no successor and is
// skipped.
func FollowThrough(bars []model.Bar, signals []model.Signal, want model.Signal) Follow {
	var f Follow
	n := min(len(bars), len(signals))
	for i := 0; i < n-1; i++ {
		if signals[i] != want {
			continue
		}
		f.Total++
		next := bars[i+1]
		switch {
		case next.Close > next.Open:
			f.Up++
		case next.Close < next.Open:
			f.Down++
		}
	}
	if f.Total > 0 {
		f.UpPct = float64(f.Up) / float64(f.Total) * 100
		f.DownPct = float64(f.Down) / float64(f.Total) * 100
	}
	return f
}
