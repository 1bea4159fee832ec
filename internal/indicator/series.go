package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/markcheno/go-talib"

	"srsignals/internal/model"
)

// Batch helpers over a whole bar series. Outputs are aligned with the input:
// out[i] belongs to bars[i], and positions inside the lookback are 0.

// SMASeries is the simple moving average of closes.
func SMASeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, period) {
		return make([]float64, len(bars))
	}
	return talib.Sma(model.Closes(bars), period)
}

// EMASeries is the exponential moving average of closes.
func EMASeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, period) {
		return make([]float64, len(bars))
	}
	return talib.Ema(model.Closes(bars), period)
}

// RSISeries is Wilder's RSI of closes.
func RSISeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, period+1) {
		return make([]float64, len(bars))
	}
	return talib.Rsi(model.Closes(bars), period)
}

// ATRSeries is Wilder's average true range.
func ATRSeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, period+1) {
		return make([]float64, len(bars))
	}
	return talib.Atr(model.Highs(bars), model.Lows(bars), model.Closes(bars), period)
}

// WilliamsRSeries is Williams %R in [-100, 0].
func WilliamsRSeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, period) {
		return make([]float64, len(bars))
	}
	return talib.WillR(model.Highs(bars), model.Lows(bars), model.Closes(bars), period)
}

// ADXSeries is the average directional index.
func ADXSeries(bars []model.Bar, period int) []float64 {
	if !enough(bars, 2*period) {
		return make([]float64, len(bars))
	}
	return talib.Adx(model.Highs(bars), model.Lows(bars), model.Closes(bars), period)
}

// OBVSeries is on-balance volume.
func OBVSeries(bars []model.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	return talib.Obv(model.Closes(bars), model.Volumes(bars))
}

// Bands holds Bollinger band columns.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerSeries computes SMA-based Bollinger bands with numStd standard
// deviations on both sides.
func BollingerSeries(bars []model.Bar, period int, numStd float64) Bands {
	n := len(bars)
	if !enough(bars, period) {
		return Bands{Upper: make([]float64, n), Middle: make([]float64, n), Lower: make([]float64, n)}
	}
	upper, middle, lower := talib.BBands(model.Closes(bars), period, numStd, numStd, talib.SMA)
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}

// CMFSeries is the Chaikin money flow over period bars. Bars with a zero
// range contribute no money flow.
func CMFSeries(bars []model.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if !enough(bars, period) {
		return out
	}
	mfv := make([]float64, len(bars))
	for i, b := range bars {
		if rng := b.High - b.Low; rng > 0 {
			mfv[i] = ((b.Close - b.Low) - (b.High - b.Close)) / rng * b.Volume
		}
	}
	for i := period - 1; i < len(bars); i++ {
		var flow, vol float64
		for j := i - period + 1; j <= i; j++ {
			flow += mfv[j]
			vol += bars[j].Volume
		}
		if vol > 0 {
			out[i] = flow / vol
		}
	}
	return out
}

// VWAPSeries is the cumulative volume-weighted typical price from the first
// bar. A prefix with zero volume yields 0.
func VWAPSeries(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	var pv, vol float64
	for i, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// Column computes a named batch series. Supported names: SMA, EMA, RSI,
// ATR, WILLR, ADX, OBV, CMF, VWAP.
func Column(bars []model.Bar, name string, period int) ([]float64, error) {
	switch name {
	case "SMA":
		return SMASeries(bars, period), nil
	case "EMA":
		return EMASeries(bars, period), nil
	case "RSI":
		return RSISeries(bars, period), nil
	case "ATR":
		return ATRSeries(bars, period), nil
	case "WILLR":
		return WilliamsRSeries(bars, period), nil
	case "ADX":
		return ADXSeries(bars, period), nil
	case "OBV":
		return OBVSeries(bars), nil
	case "CMF":
		return CMFSeries(bars, period), nil
	case "VWAP":
		return VWAPSeries(bars), nil
	}
	return nil, fmt.Errorf("indicator: unknown series %q", name)
}

// ColumnSpec names one batch series and its lookback.
type ColumnSpec struct {
	Name   string
	Period int // unused by OBV and VWAP
}

// Label renders the spec as NAME_PERIOD, or NAME for cumulative series.
func (c ColumnSpec) Label() string {
	if c.Period == 0 {
		return c.Name
	}
	return c.Name + "_" + strconv.Itoa(c.Period)
}

// ParseColumns parses NAME[:PERIOD],... such as "WILLR:14,ATR:14,VWAP".
// OBV and VWAP take no period; every other series requires one.
func ParseColumns(s string) ([]ColumnSpec, error) {
	var out []ColumnSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, period, hasPeriod := strings.Cut(part, ":")
		spec := ColumnSpec{Name: strings.ToUpper(strings.TrimSpace(name))}
		switch spec.Name {
		case "OBV", "VWAP":
			if hasPeriod {
				return nil, fmt.Errorf("indicator: %s takes no period", spec.Name)
			}
		case "SMA", "EMA", "RSI", "ATR", "WILLR", "ADX", "CMF":
			n, err := strconv.Atoi(strings.TrimSpace(period))
			if !hasPeriod || err != nil || n <= 0 {
				return nil, fmt.Errorf("indicator: %q needs a positive period", part)
			}
			spec.Period = n
		default:
			return nil, fmt.Errorf("indicator: unknown series %q", spec.Name)
		}
		out = append(out, spec)
	}
	return out, nil
}

func enough(bars []model.Bar, need int) bool {
	return need > 0 && len(bars) >= need
}
