package indicator

import (
	"context"
	"strconv"
	"strings"

	"srsignals/internal/model"
)

// Config specifies a single indicator to compute.
type Config struct {
	Type   string `toml:"type"` // "SMA", "EMA", "RSI", "SMMA", "ATR"
	Period int    `toml:"period"`
}

// IntervalConfig groups indicator configs for one bar interval.
type IntervalConfig struct {
	Interval   string   `toml:"interval"` // "1h", "1d", ...
	Indicators []Config `toml:"indicators"`
}

// seriesIndicators holds live indicator instances for one symbol@interval.
type seriesIndicators struct {
	indicators []Indicator
	configs    []Config
}

// Engine computes multiple indicators across intervals for many symbols.
// Designed for single-goroutine usage; no locks.
type Engine struct {
	configs []IntervalConfig

	// state[cfgIdx][symbol@interval]
	state []map[string]*seriesIndicators
}

// NewEngine creates an indicator engine with the given per-interval configs.
func NewEngine(configs []IntervalConfig) *Engine {
	state := make([]map[string]*seriesIndicators, len(configs))
	for i := range state {
		state[i] = make(map[string]*seriesIndicators, 64)
	}
	return &Engine{
		configs: configs,
		state:   state,
	}
}

func (e *Engine) configIndex(interval string) int {
	for i, cfg := range e.configs {
		if cfg.Interval == interval {
			return i
		}
	}
	return -1
}

// Process feeds a finalized bar to every indicator configured for its
// interval. Results include not-ready indicators with Ready=false.
func (e *Engine) Process(bar model.Bar) []model.IndicatorResult {
	idx := e.configIndex(bar.Interval)
	if idx == -1 {
		return nil
	}

	key := bar.Key()
	si, exists := e.state[idx][key]
	if !exists {
		si = e.createSeriesIndicators(idx)
		e.state[idx][key] = si
	}

	results := make([]model.IndicatorResult, 0, len(si.indicators))
	for i, ind := range si.indicators {
		ind.Update(bar)
		results = append(results, model.IndicatorResult{
			Name:     resultName(ind, si.configs[i]),
			Symbol:   bar.Symbol,
			Interval: bar.Interval,
			Value:    ind.Value(),
			TS:       bar.TS,
			Ready:    ind.Ready(),
		})
	}
	return results
}

// ProcessPeek previews indicator values for a forming bar using Peek().
// Returns nil if the series hasn't been seeded by Process yet.
func (e *Engine) ProcessPeek(bar model.Bar) []model.IndicatorResult {
	idx := e.configIndex(bar.Interval)
	if idx == -1 {
		return nil
	}
	si, exists := e.state[idx][bar.Key()]
	if !exists {
		return nil
	}

	results := make([]model.IndicatorResult, 0, len(si.indicators))
	for i, ind := range si.indicators {
		results = append(results, model.IndicatorResult{
			Name:     resultName(ind, si.configs[i]),
			Symbol:   bar.Symbol,
			Interval: bar.Interval,
			Value:    ind.Peek(bar.Close),
			TS:       bar.TS,
			Ready:    ind.Ready(),
		})
	}
	return results
}

// Run consumes bars and emits indicator results. Blocks until ctx done or
// barCh closes.
func (e *Engine) Run(ctx context.Context, barCh <-chan model.Bar, resultCh chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			for _, r := range e.Process(bar) {
				select {
				case resultCh <- r:
				default:
					// drop if channel full
				}
			}
		}
	}
}

func (e *Engine) createSeriesIndicators(idx int) *seriesIndicators {
	cfg := e.configs[idx]
	inds := make([]Indicator, len(cfg.Indicators))
	for i, ic := range cfg.Indicators {
		inds[i] = New(ic)
	}
	return &seriesIndicators{
		indicators: inds,
		configs:    cfg.Indicators,
	}
}

// New builds a streaming indicator from its config. Unknown types fall back
// to SMA.
func New(c Config) Indicator {
	switch strings.ToUpper(c.Type) {
	case "EMA":
		return NewEMA(c.Period)
	case "RSI":
		return NewRSI(c.Period)
	case "SMMA":
		return NewSMMA(c.Period)
	case "ATR":
		return NewATR(c.Period)
	default:
		return NewSMA(c.Period)
	}
}

func resultName(ind Indicator, c Config) string {
	return ind.Name() + "_" + strconv.Itoa(c.Period)
}
