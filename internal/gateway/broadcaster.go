package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

// Broadcaster builds envelopes and delivers them to matching clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast records data as the newest payload on channel, buffers the
// envelope for replay and offers it to every subscribed client. Clients
// whose queue is full miss the envelope and can backfill by channel_seq.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := b.now().UTC()

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	rb, ok := b.hub.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(b.hub.replaySize)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	env := buildEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, env)

	series := channelSeries(channel)
	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for c := range b.hub.clients {
		if !c.wants(series) {
			continue
		}
		select {
		case c.send <- env:
		default:
		}
	}
}

// buildEnvelope writes {"channel":...,"data":...,"ts":...,"seq":N,"channel_seq":M}
// without reflection. data must be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":`...)
	buf = appendJSONString(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// appendJSONString appends s as a quoted JSON string. Channels are plain
// ASCII in practice, so encoding/json only runs when something needs escaping.
func appendJSONString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == '"' || c == '\\' || c >= 0x7f {
			q, _ := json.Marshal(s)
			return append(buf, q...)
		}
	}
	buf = append(buf, '"')
	buf = append(buf, s...)
	return append(buf, '"')
}
