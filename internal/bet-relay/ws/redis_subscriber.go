package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de broadcast e repassa cada evento ao Hub.
// Só retorna depois que a inscrição foi confirmada pelo Redis.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) error {
	sub := r.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := sub.Channel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev events.BetLifecycle
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(ev)
			}
		}
	}()
	return nil
}
