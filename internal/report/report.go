// Package report renders scan results as text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"srsignals/internal/candle"
	"srsignals/internal/model"
)

// Summary aggregates one scan.
type Summary struct {
	Symbol   string
	Interval string
	RunID    string
	Bars     int
	Bullish  int
	Bearish  int
	Hit      candle.Stats
	Follow   map[model.Signal]candle.Follow
	// Confluence counts signals that agree with a named auxiliary signal
	// column (trend, band entry, ...).
	Confluence map[string]int
}

// Summarize counts signals and scores them against n-bar price targets.
func Summarize(bars []model.Bar, results []model.SignalResult, targetBars int) Summary {
	s := Summary{
		Bars:       len(bars),
		Follow:     make(map[model.Signal]candle.Follow, 2),
		Confluence: make(map[string]int),
	}
	if len(results) > 0 {
		s.Symbol, s.Interval, s.RunID = results[0].Symbol, results[0].Interval, results[0].RunID
	}
	signals := make([]model.Signal, len(results))
	for i, r := range results {
		signals[i] = r.Signal
		switch r.Signal {
		case model.SignalBullish:
			s.Bullish++
		case model.SignalBearish:
			s.Bearish++
		}
	}
	s.Hit = candle.HitRate(signals, candle.PriceTargets(bars, targetBars))
	for _, sig := range []model.Signal{model.SignalBullish, model.SignalBearish} {
		s.Follow[sig] = candle.FollowThrough(bars, signals, sig)
	}
	return s
}

// AddConfluence records how many non-zero signals in results match other
// at the same index. Columns of a different length are ignored.
func (s *Summary) AddConfluence(name string, results []model.SignalResult, other []model.Signal) {
	if len(other) != len(results) {
		return
	}
	n := 0
	for i, r := range results {
		if r.Signal != model.SignalNone && r.Signal == other[i] {
			n++
		}
	}
	s.Confluence[name] = n
}

// Column is an auxiliary value series aligned with the scanned bars.
type Column struct {
	Name   string
	Values []float64
}

// SignalTable renders every non-zero signal, followed by the value of each
// column at the signal's bar. limit <= 0 renders all.
func SignalTable(results []model.SignalResult, limit int, cols ...Column) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	header := table.Row{"#", "Time", "Signal", "Rejection", "Resistance", "Support", "Levels"}
	configs := []table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	}
	for _, c := range cols {
		header = append(header, c.Name)
		configs = append(configs, table.ColumnConfig{Number: len(header), Align: text.AlignRight})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	rows := 0
	for _, r := range results {
		if r.Signal == model.SignalNone {
			continue
		}
		if limit > 0 && rows >= limit {
			break
		}
		row := table.Row{
			r.Index,
			r.TS.Format("2006-01-02 15:04"),
			r.Signal.String(),
			r.Rejection.String(),
			level(r.Resistance),
			level(r.Support),
			r.LevelCount,
		}
		for _, c := range cols {
			row = append(row, value(c.Values, r.Index))
		}
		t.AppendRow(row)
		rows++
	}
	t.AppendFooter(table.Row{"", "", "rows", rows})
	return t.Render()
}

// SummaryTable renders the scan summary.
func SummaryTable(s Summary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s %s", s.Symbol, s.Interval))
	t.AppendRows([]table.Row{
		{"run", s.RunID},
		{"bars", s.Bars},
		{"bullish", s.Bullish},
		{"bearish", s.Bearish},
		{"target agreement", pct(s.Hit.EqualPct, s.Hit.Total)},
		{"bullish next-bar up", pct(s.Follow[model.SignalBullish].UpPct, s.Follow[model.SignalBullish].Total)},
		{"bearish next-bar down", pct(s.Follow[model.SignalBearish].DownPct, s.Follow[model.SignalBearish].Total)},
	})
	names := make([]string, 0, len(s.Confluence))
	for name := range s.Confluence {
		names = append(names, name)
	}
	sort.Strings(names)
	signals := s.Bullish + s.Bearish
	for _, name := range names {
		n := s.Confluence[name]
		share := 0.0
		if signals > 0 {
			share = 100 * float64(n) / float64(signals)
		}
		t.AppendRow(table.Row{"agrees with " + name, pct(share, signals)})
	}
	return t.Render()
}

// Write renders the summary followed by the signal table.
func Write(w io.Writer, s Summary, results []model.SignalResult, limit int, cols ...Column) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", SummaryTable(s), SignalTable(results, limit, cols...))
	return err
}

// value formats vals[i]; lookback zeros and missing indices render as "-".
func value(vals []float64, i int) string {
	if i < 0 || i >= len(vals) || vals[i] == 0 || math.IsNaN(vals[i]) {
		return "-"
	}
	return fmt.Sprintf("%.4f", vals[i])
}

func level(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func pct(p float64, n int) string {
	if n == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%% of %d", p, n)
}
