package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"srsignals/internal/model"
)

func startHub(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	before := h.ClientCount()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() <= before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// readMessages reads one frame and splits coalesced envelopes.
func readMessages(t *testing.T, conn *websocket.Conn) [][]byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return bytes.Split(data, []byte{'\n'})
}

// nextEnvelope reads until an envelope with a channel arrives.
func nextEnvelope(t *testing.T, conn *websocket.Conn, pending *[][]byte) envelope {
	t.Helper()
	for {
		if len(*pending) == 0 {
			*pending = readMessages(t, conn)
		}
		msg := (*pending)[0]
		*pending = (*pending)[1:]
		var env envelope
		if json.Unmarshal(msg, &env) == nil && env.Channel != "" {
			return env
		}
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := NewHub(10)
	counts := make(chan int, 4)
	h.OnClientsChange = func(n int) { counts <- n }
	conn := startHub(t, h, "")

	h.Broadcast(signalAt("EURUSD", 5, model.SignalBullish))

	var pending [][]byte
	env := nextEnvelope(t, conn, &pending)
	if env.Channel != "pub:sig:1h:EURUSD" || env.ChannelSeq != 1 {
		t.Errorf("envelope = %+v", env)
	}
	if n := <-counts; n != 1 {
		t.Errorf("client count hook = %d", n)
	}
}

func TestHub_InitialState(t *testing.T) {
	h := NewHub(10)
	h.Broadcast(signalAt("EURUSD", 1, model.SignalBearish))
	conn := startHub(t, h, "")

	var pending [][]byte
	env := nextEnvelope(t, conn, &pending)
	if !env.Initial || env.Channel != "pub:sig:1h:EURUSD" {
		t.Errorf("initial envelope = %+v", env)
	}
}

func TestHub_SubscribeFiltersAndReplays(t *testing.T) {
	h := NewHub(10)
	for i := 0; i < 3; i++ {
		h.Broadcast(signalAt("GBPUSD", i, model.SignalBullish))
	}
	conn := startHub(t, h, "?last_ts=2999-01-01T00:00:00Z")

	sub, _ := json.Marshal(SubscribeMsg{Type: msgSubscribe, ReqID: "r1", Symbol: "GBPUSD", Interval: "1h", SinceSeq: 1})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatal(err)
	}

	var pending [][]byte
	var ack SubscribedMsg
	for ack.Type != "subscribed" {
		if len(pending) == 0 {
			pending = readMessages(t, conn)
		}
		json.Unmarshal(pending[0], &ack)
		pending = pending[1:]
	}
	if ack.ReqID != "r1" || ack.ChannelSeq != 3 || ack.Replayed != 2 {
		t.Fatalf("ack = %+v", ack)
	}
	for _, want := range []int64{2, 3} {
		if env := nextEnvelope(t, conn, &pending); env.ChannelSeq != want {
			t.Errorf("replayed seq %d, want %d", env.ChannelSeq, want)
		}
	}

	h.Broadcast(signalAt("EURUSD", 9, model.SignalBullish))
	h.Broadcast(signalAt("GBPUSD", 9, model.SignalBearish))
	env := nextEnvelope(t, conn, &pending)
	if env.Channel != "pub:sig:1h:GBPUSD" || env.ChannelSeq != 4 {
		t.Errorf("filtered envelope = %+v", env)
	}
}

func TestHub_RemoveOnDisconnect(t *testing.T) {
	h := NewHub(10)
	conn := startHub(t, h, "")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Broadcast(signalAt("EURUSD", 1, model.SignalBullish))
}
