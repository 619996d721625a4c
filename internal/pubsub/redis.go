// Package pubsub publishes job lifecycle events for downstream consumers.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes outbox payloads on Redis channels. Delivery is
// fire-and-forget at the transport level; the outbox provides the
// at-least-once guarantee by only marking entries sent after Publish returns.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(client *redis.Client, logger *slog.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisPublisher{client: client, logger: logger}, nil
}

// Publish sends the payload on the named channel.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish on %s: %w", topic, err)
	}
	if p.logger != nil {
		p.logger.DebugContext(ctx, "event published", "topic", topic, "bytes", len(payload))
	}
	return nil
}
