package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

// RedisBroadcaster publica no canal Pub/Sub lido pelo hub de websocket
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Name() string { return "redis" }

func (b *RedisBroadcaster) Send(ctx context.Context, e events.BetLifecycle) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
