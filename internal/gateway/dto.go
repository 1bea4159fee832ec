package gateway

import (
	"encoding/json"

	"srsignals/internal/model"
)

// Client message types.
const (
	msgSubscribe   = "SUBSCRIBE"
	msgUnsubscribe = "UNSUBSCRIBE"
)

// SubscribeMsg limits a client to one more series. SinceSeq > 0 asks for
// every buffered envelope on that series newer than SinceSeq.
type SubscribeMsg struct {
	Type     string `json:"type"`
	ReqID    string `json:"req_id,omitempty"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	SinceSeq int64  `json:"since_seq,omitempty"`
}

// Channel returns the PubSub channel of the requested series.
func (m SubscribeMsg) Channel() string {
	r := model.SignalResult{Symbol: m.Symbol, Interval: m.Interval}
	return r.PubSubChannel()
}

// SubscribedMsg acknowledges a SUBSCRIBE.
type SubscribedMsg struct {
	Type       string `json:"type"` // "subscribed"
	ReqID      string `json:"req_id,omitempty"`
	Channel    string `json:"channel"`
	ChannelSeq int64  `json:"channel_seq"`
	Replayed   int    `json:"replayed"`
}

// ErrorMsg reports a rejected client message.
type ErrorMsg struct {
	Type  string `json:"type"` // "error"
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// MissedResponse is the body of /api/missed.
type MissedResponse struct {
	Channel   string            `json:"channel"`
	From      int64             `json:"from"`
	To        int64             `json:"to"`
	Envelopes []json.RawMessage `json:"envelopes"`
}
