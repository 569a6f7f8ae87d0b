package alert

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel alerts go to by default.
const DefaultRedisChannel = "orderhub:alerts"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisEscalator publishes alerts as JSON on a Redis pub/sub channel.
type RedisEscalator struct {
	client  publisher
	channel string
}

func NewRedisEscalator(client publisher, channel string) *RedisEscalator {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisEscalator{client: client, channel: channel}
}

func (e *RedisEscalator) Escalate(ctx context.Context, a Alert) error {
	data, err := a.payload()
	if err != nil {
		return err
	}
	if err := e.client.Publish(ctx, e.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %w", e.channel, err)
	}
	return nil
}
