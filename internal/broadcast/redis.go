package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mototaxi-backend/internal/logger"

	"github.com/go-redis/redis/v8"
)

const redisPrefix = "broadcast:"

// Redis публикует события через PUBLISH broadcast:<channel>
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}
	if err := r.client.Publish(ctx, redisPrefix+ev.Channel, body).Err(); err != nil {
		return fmt.Errorf("ошибка публикации в Redis: %w", err)
	}
	return nil
}

func (r *Redis) Name() string { return "redis" }

// Close ничего не делает: клиентом Redis владеет main
func (r *Redis) Close() error { return nil }

// RunRedisRelay подписывается на broadcast:* и передает события в sink.
// Блокируется до отмены ctx. ready закрывается после подтверждения подписки.
func RunRedisRelay(ctx context.Context, client *redis.Client, sink Sink, log *logger.Logger, ready chan<- struct{}) error {
	pubsub := client.PSubscribe(ctx, redisPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("ошибка подписки на Redis: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	log.Info(logger.Entry{Action: "broadcast_relay_started", Fields: logger.Fields{"driver": "redis"}})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				log.Warn(logger.Entry{Action: "broadcast_relay_bad_message", Err: err})
				continue
			}
			if want := strings.TrimPrefix(msg.Channel, redisPrefix); want != ev.Channel {
				log.Warn(logger.Entry{
					Action: "broadcast_relay_channel_mismatch",
					Fields: logger.Fields{"redis_channel": msg.Channel, "event_channel": ev.Channel},
				})
				continue
			}
			sink.Deliver(ev)
		}
	}
}
