package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher fans deal events into a redis pubsub stream. Delivery is
// best effort: subscribers that are down miss events, the database ledger
// remains the source of truth.
type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, stream, data).Err(); err != nil {
		p.log.Warn("event publish failed", zap.String("stream", stream), zap.Error(err))
		return err
	}
	return nil
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe starts a background consumer on the stream and returns. The
// consumer lives until ctx is cancelled; the pubsub connection closing ends
// the channel and stops the loop.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)

	go func() {
		<-ctx.Done()
		_ = pubsub.Close()
	}()

	go func() {
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.Error("malformed event on stream", zap.String("stream", stream), zap.Error(err))
				continue
			}
			handler(event)
		}
	}()

	return nil
}
