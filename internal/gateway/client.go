package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"srsignals/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client is one WebSocket peer. With no subscriptions it receives every
// channel.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool // symbol@interval
}

// wants reports whether the client receives envelopes for series.
// Envelopes not tied to a series always pass.
func (c *Client) wants(series string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subs) == 0 || series == "" {
		return true
	}
	return c.subs[series]
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		env, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- env:
		default:
		}
	}
}

// trySend queues v unless the client is gone or its queue is full.
func (c *Client) trySend(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Coalesce queued envelopes into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			for n := len(c.send); n > 0; n-- {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case msgSubscribe:
			var sub SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				c.trySend(ErrorMsg{Type: "error", Error: "invalid SUBSCRIBE: " + err.Error()})
				continue
			}
			c.handleSubscribe(sub)
		case msgUnsubscribe:
			var sub SubscribeMsg
			if json.Unmarshal(msg, &sub) == nil {
				c.subMu.Lock()
				delete(c.subs, model.SeriesKey(sub.Symbol, sub.Interval))
				c.subMu.Unlock()
			}
		default:
			if base.Ping > 0 {
				c.trySend(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
			}
		}
	}
}

func (c *Client) handleSubscribe(msg SubscribeMsg) {
	if msg.Symbol == "" || msg.Interval == "" {
		c.trySend(ErrorMsg{Type: "error", ReqID: msg.ReqID, Error: "symbol and interval are required"})
		return
	}
	c.subMu.Lock()
	c.subs[model.SeriesKey(msg.Symbol, msg.Interval)] = true
	c.subMu.Unlock()

	channel := msg.Channel()
	var missed [][]byte
	if msg.SinceSeq > 0 {
		missed = c.hub.ReplayRange(channel, msg.SinceSeq+1, c.hub.ChannelSeq(channel))
	}
	c.trySend(SubscribedMsg{
		Type:       "subscribed",
		ReqID:      msg.ReqID,
		Channel:    channel,
		ChannelSeq: c.hub.ChannelSeq(channel),
		Replayed:   len(missed),
	})
	for _, env := range missed {
		c.hub.mu.RLock()
		if c.hub.clients[c] {
			select {
			case c.send <- env:
			default:
			}
		}
		c.hub.mu.RUnlock()
	}
	log.Printf("[gateway] client subscribed: %s since=%d replayed=%d", channel, msg.SinceSeq, len(missed))
}
