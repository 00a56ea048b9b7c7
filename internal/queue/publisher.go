package queue

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/redis"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event FeedEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish adds an event to the stream using XADD.
// Uses "*" for auto-generated message ID (timestamp-sequence).
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event FeedEvent) (string, error) {
	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		logger.Get().Error("event publish failed",
			zap.String("stream", stream),
			zap.String("type", event.Type),
			zap.Error(err))
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	logger.Get().Debug("event published",
		zap.String("stream", stream),
		zap.String("type", event.Type),
		zap.String("message_id", messageID))
	return messageID, nil
}
