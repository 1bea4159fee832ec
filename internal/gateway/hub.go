package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"srsignals/internal/model"
)

const (
	defaultReplaySize = 500
	clientSendBuffer  = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// Hub tracks WebSocket clients and fans signal envelopes out to them. It
// keeps the newest payload and a replay buffer per channel so clients can
// catch up after connecting or reconnecting.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	seq         int64
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer
	replaySize  int

	Broadcaster *Broadcaster

	// OnClientsChange receives the client count after every connect or
	// disconnect.
	OnClientsChange func(n int)
}

// NewHub creates a Hub keeping replaySize envelopes per channel.
func NewHub(replaySize int) *Hub {
	if replaySize <= 0 {
		replaySize = defaultReplaySize
	}
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		replaySize:  replaySize,
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run broadcasts every result from ch until ctx is cancelled or ch closes.
func (h *Hub) Run(ctx context.Context, ch <-chan model.SignalResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(r)
		}
	}
}

// Broadcast sends r on its PubSub channel name.
func (h *Hub) Broadcast(r model.SignalResult) {
	h.Broadcaster.Broadcast(r.PubSubChannel(), r.JSON())
}

// HandleWS upgrades the request and registers the connection. The optional
// last_ts query parameter limits the initial state to newer entries.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	h.register(conn, r.URL.Query().Get("last_ts"))
}

func (h *Hub) register(conn *websocket.Conn, lastTS string) {
	c := &Client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		hub:  h,
		subs: make(map[string]bool),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", n)
	if h.OnClientsChange != nil {
		h.OnClientsChange(n)
	}

	go c.sendInitialState(lastTS)
	go c.writePump()
	go c.readPump()
}

// RemoveClient unregisters c and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.OnClientsChange != nil {
		h.OnClientsChange(n)
	}
}

// Latest returns the newest payload per channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		out[k] = v.Data
	}
	return out
}

// ReplayRange returns buffered envelopes for channel with channel_seq in
// [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return rb.Range(fromSeq, toSeq)
}

// ChannelSeq returns the newest sequence number on channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// channelSeries maps "pub:sig:{interval}:{symbol}" to "symbol@interval".
// Other channels map to "".
func channelSeries(channel string) string {
	parts := strings.SplitN(channel, ":", 4)
	if len(parts) != 4 || parts[0] != "pub" || parts[1] != "sig" {
		return ""
	}
	return model.SeriesKey(parts[3], parts[2])
}
