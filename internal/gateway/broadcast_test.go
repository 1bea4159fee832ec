package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"srsignals/internal/model"
)

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
	Initial    bool            `json:"initial"`
}

func signalAt(symbol string, i int, s model.Signal) model.SignalResult {
	return model.SignalResult{
		Symbol:     symbol,
		Interval:   "1h",
		Index:      i,
		TS:         time.Date(2024, 1, 2, i, 0, 0, 0, time.UTC),
		Signal:     s,
		Resistance: 1.1,
	}
}

func TestBuildEnvelope(t *testing.T) {
	r := signalAt("EURUSD", 3, model.SignalBearish)
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	buf := buildEnvelope(r.PubSubChannel(), r.JSON(), now, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != "pub:sig:1h:EURUSD" || env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("envelope = %+v", env)
	}
	var got model.SignalResult
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Signal != model.SignalBearish || got.Index != 3 {
		t.Errorf("data = %+v", got)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, env.TS); err != nil || !parsed.Equal(now) {
		t.Errorf("ts = %q (%v)", env.TS, err)
	}
}

func TestBuildEnvelopeEscapesChannel(t *testing.T) {
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	for _, ch := range []string{
		`pub:sig:1h:BAD"SYM`,
		`pub:sig:1h:BACK\SLASH`,
		"pub:sig:1h:TAB\tSYM",
		"pub:sig:1h:ÜBER",
	} {
		buf := buildEnvelope(ch, []byte(`{"signal":0}`), now, 1, 1)
		var env envelope
		if err := json.Unmarshal(buf, &env); err != nil {
			t.Fatalf("%q: envelope is not valid JSON: %v\nraw: %s", ch, err, buf)
		}
		if env.Channel != ch {
			t.Errorf("channel = %q, want %q", env.Channel, ch)
		}
	}
}

func TestChannelSeries(t *testing.T) {
	tests := []struct{ in, want string }{
		{"pub:sig:1h:EURUSD", "EURUSD@1h"},
		{"pub:sig:1d:NSE:RELIANCE", "NSE:RELIANCE@1d"},
		{"pub:ind:SMA_9:60s:NSE", ""},
		{"metrics", ""},
	}
	for _, tt := range tests {
		if got := channelSeries(tt.in); got != tt.want {
			t.Errorf("channelSeries(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBroadcastSequencesAndLatest(t *testing.T) {
	h := NewHub(3)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Broadcaster.now = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		h.Broadcast(signalAt("EURUSD", i, model.SignalBullish))
	}
	h.Broadcast(signalAt("GBPUSD", 0, model.SignalBearish))

	if got := h.ChannelSeq("pub:sig:1h:EURUSD"); got != 5 {
		t.Errorf("EURUSD seq = %d", got)
	}
	if got := h.ChannelSeq("pub:sig:1h:GBPUSD"); got != 1 {
		t.Errorf("GBPUSD seq = %d", got)
	}
	envs := h.ReplayRange("pub:sig:1h:EURUSD", 1, 5)
	if len(envs) != 3 {
		t.Fatalf("replay kept %d, want 3", len(envs))
	}
	var first envelope
	json.Unmarshal(envs[0], &first)
	if first.ChannelSeq != 3 || first.Seq != 3 {
		t.Errorf("oldest kept envelope = %+v", first)
	}

	latest := h.Latest()
	var r model.SignalResult
	if err := json.Unmarshal(latest["pub:sig:1h:EURUSD"], &r); err != nil || r.Index != 4 {
		t.Errorf("latest = %+v (%v)", r, err)
	}
}

func TestPubSubRoute(t *testing.T) {
	h := NewHub(10)
	router := NewPubSubRouter(h, nil)
	good := signalAt("EURUSD", 1, model.SignalBullish)

	router.route(good.PubSubChannel(), good.JSON())
	router.route(good.PubSubChannel(), []byte("not json"))
	router.route(good.PubSubChannel(), []byte(`{"signal":9}`))
	router.route("pub:ind:x", good.JSON())

	if got := h.ChannelSeq(good.PubSubChannel()); got != 1 {
		t.Errorf("routed %d messages, want 1", got)
	}
}
