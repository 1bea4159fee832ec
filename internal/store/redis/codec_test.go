package redis

import (
	"testing"

	"srsignals/internal/model"
)

func TestUnmarshalResult(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		want    model.Signal
	}{
		{"bearish", `{"symbol":"EURUSD","interval":"1h","index":7,"signal":1}`, false, model.SignalBearish},
		{"bullish", `{"symbol":"EURUSD","interval":"1h","index":8,"signal":2}`, false, model.SignalBullish},
		{"out of range signal", `{"symbol":"EURUSD","interval":"1h","signal":3}`, true, 0},
		{"malformed", `{"symbol":`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r model.SignalResult
			err := unmarshalResult([]byte(tt.data), &r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (r.Signal != tt.want || r.Symbol != "EURUSD") {
				t.Errorf("decoded %+v", r)
			}
		})
	}
}

func TestUnmarshalResultRoundTrip(t *testing.T) {
	in := model.SignalResult{Symbol: "EURUSD", Interval: "1d", Index: 42, Signal: model.SignalBullish, Support: 1.0825}
	var out model.SignalResult
	if err := unmarshalResult(in.JSON(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Index != in.Index || out.Signal != in.Signal || out.Support != in.Support {
		t.Errorf("got %+v, want %+v", out, in)
	}
}
