package gateway

import (
	"context"
	"encoding/json"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"srsignals/internal/model"
)

// SignalPattern matches every signal PubSub channel.
const SignalPattern = "pub:sig:*"

// PubSubRouter relays signals published to Redis by another process into
// the hub.
type PubSubRouter struct {
	hub *Hub
	rdb *goredis.Client
}

// NewPubSubRouter creates a router reading from rdb.
func NewPubSubRouter(hub *Hub, rdb *goredis.Client) *PubSubRouter {
	return &PubSubRouter{hub: hub, rdb: rdb}
}

// Run pattern-subscribes to the signal channels and broadcasts each valid
// payload. Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, SignalPattern)
	defer pubsub.Close()
	log.Printf("[gateway] subscribed to %s", SignalPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.route(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *PubSubRouter) route(channel string, payload []byte) {
	if channelSeries(channel) == "" {
		return
	}
	var res model.SignalResult
	if err := json.Unmarshal(payload, &res); err != nil || !res.Signal.Valid() {
		log.Printf("[gateway] dropping malformed payload on %s", channel)
		return
	}
	r.hub.Broadcaster.Broadcast(channel, payload)
}
