// Package csvload reads daily or intraday OHLCV bars from yfinance-style CSV
// exports (Date or Datetime, Open, High, Low, Close, optional Adj Close, Volume).
package csvload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"srsignals/internal/model"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("csvload: missing column")
	// ErrDuplicateTime is returned when two rows share a timestamp.
	ErrDuplicateTime = errors.New("csvload: duplicate timestamp")
)

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"01/02/2006",
}

// Options names the series and controls row filtering.
type Options struct {
	Symbol   string
	Interval string
	// KeepFlat keeps rows whose high equals their low. By default they are
	// dropped as no-trade sessions.
	KeepFlat bool
}

// Result holds the parsed bars plus counts of rows that were skipped.
type Result struct {
	Bars    []model.Bar
	Flat    int // high == low
	Missing int // blank or "null" price cells
}

type columns struct {
	ts, open, high, low, close, volume int
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("csvload: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load parses r. Bars come back sorted by time.
func Load(r io.Reader, opts Options) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("csvload: read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("csvload: line %d: %w", line, err)
		}
		b, ok, err := parseRow(rec, cols, opts)
		if err != nil {
			return Result{}, fmt.Errorf("csvload: line %d: %w", line, err)
		}
		if !ok {
			res.Missing++
			continue
		}
		if b.High == b.Low && !opts.KeepFlat {
			res.Flat++
			continue
		}
		if err := b.Validate(); err != nil {
			return Result{}, fmt.Errorf("csvload: line %d: %w", line, err)
		}
		res.Bars = append(res.Bars, b)
	}

	sort.SliceStable(res.Bars, func(i, j int) bool { return res.Bars[i].TS.Before(res.Bars[j].TS) })
	for i := 1; i < len(res.Bars); i++ {
		if res.Bars[i].TS.Equal(res.Bars[i-1].TS) {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateTime, res.Bars[i].TS.Format(time.RFC3339))
		}
	}
	return res, nil
}

func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	find := func(names ...string) (int, error) {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %s", ErrMissingColumn, names[0])
	}

	var c columns
	var err error
	if c.ts, err = find("date", "datetime", "time", "timestamp"); err != nil {
		return c, err
	}
	if c.open, err = find("open"); err != nil {
		return c, err
	}
	if c.high, err = find("high"); err != nil {
		return c, err
	}
	if c.low, err = find("low"); err != nil {
		return c, err
	}
	if c.close, err = find("close"); err != nil {
		return c, err
	}
	c.volume, _ = find("volume")
	return c, nil
}

// parseRow returns ok=false for rows with missing prices.
func parseRow(rec []string, c columns, opts Options) (model.Bar, bool, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ts, err := parseTime(cell(c.ts))
	if err != nil {
		return model.Bar{}, false, err
	}

	var px [4]float64
	for k, i := range []int{c.open, c.high, c.low, c.close} {
		s := cell(i)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
			return model.Bar{}, false, nil
		}
		if px[k], err = strconv.ParseFloat(s, 64); err != nil {
			return model.Bar{}, false, fmt.Errorf("parse price %q: %w", s, err)
		}
	}

	var vol float64
	if s := cell(c.volume); s != "" && !strings.EqualFold(s, "null") {
		if vol, err = strconv.ParseFloat(s, 64); err != nil {
			return model.Bar{}, false, fmt.Errorf("parse volume %q: %w", s, err)
		}
	}

	return model.Bar{
		Symbol:   opts.Symbol,
		Interval: opts.Interval,
		TS:       ts,
		Open:     px[0],
		High:     px[1],
		Low:      px[2],
		Close:    px[3],
		Volume:   vol,
	}, true, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
