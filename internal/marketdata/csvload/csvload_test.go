package csvload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"srsignals/internal/model"
)

const yahooDaily = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-03,1.0940,1.0960,1.0910,1.0920,1.0920,0
2024-01-02,1.1040,1.1045,1.0930,1.0945,1.0945,0
2024-01-04,1.0925,1.0925,1.0925,1.0925,1.0925,0
2024-01-05,null,null,null,null,null,null
2024-01-08,1.0950,1.0990,1.0920,1.0970,1.0970,120
`

func TestLoad(t *testing.T) {
	res, err := Load(strings.NewReader(yahooDaily), Options{Symbol: "EURUSD", Interval: "1d"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bars) != 3 || res.Flat != 1 || res.Missing != 1 {
		t.Fatalf("bars=%d flat=%d missing=%d", len(res.Bars), res.Flat, res.Missing)
	}
	first := res.Bars[0]
	if !first.TS.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("not sorted: first ts %s", first.TS)
	}
	if first.Symbol != "EURUSD" || first.Interval != "1d" || first.High != 1.1045 {
		t.Errorf("first bar: %+v", first)
	}
	if res.Bars[2].Volume != 120 {
		t.Errorf("volume = %v", res.Bars[2].Volume)
	}
}

func TestLoad_KeepFlat(t *testing.T) {
	res, err := Load(strings.NewReader(yahooDaily), Options{KeepFlat: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bars) != 4 || res.Flat != 0 {
		t.Errorf("bars=%d flat=%d", len(res.Bars), res.Flat)
	}
}

func TestLoad_HeaderVariants(t *testing.T) {
	in := "\ufeffDatetime, OPEN ,high,Low,close\n2024-01-02 09:30:00-05:00,10,11,9,10.5\n"
	res, err := Load(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bars) != 1 {
		t.Fatalf("bars = %d", len(res.Bars))
	}
	if want := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC); !res.Bars[0].TS.Equal(want) {
		t.Errorf("ts = %s, want %s", res.Bars[0].TS, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"missing close", "Date,Open,High,Low\n2024-01-02,1,2,0.5\n", ErrMissingColumn},
		{"duplicate", "Date,Open,High,Low,Close\n2024-01-02,1,2,0.5,1.5\n2024-01-02,1,2,0.5,1.5\n", ErrDuplicateTime},
		{"inverted", "Date,Open,High,Low,Close\n2024-01-02,1,0.9,0.5,1.5\n", model.ErrInvalidBar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.in), Options{}); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Load(strings.NewReader("Date,Open,High,Low,Close\nyesterday,1,2,0.5,1.5\n"), Options{}); err == nil {
		t.Error("expected time parse error")
	}
	if _, err := Load(strings.NewReader("Date,Open,High,Low,Close\n2024-01-02,x,2,0.5,1.5\n"), Options{}); err == nil {
		t.Error("expected price parse error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eurusd.csv")
	if err := os.WriteFile(path, []byte(yahooDaily), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := LoadFile(path, Options{Symbol: "EURUSD", Interval: "1d"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Bars) != 3 {
		t.Errorf("bars = %d", len(res.Bars))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), Options{}); err == nil {
		t.Error("expected open error")
	}
}
