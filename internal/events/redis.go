package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cvadapt-backend/internal/shared/telemetry"
)

// RedisPublisher publishes progress events on a per-user pub/sub channel.
// The SSE frontend subscribes to the same channel name.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to redis using REDIS_URL syntax and verifies
// connectivity.
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

// Publish sends the event to the user's channel. Failures are logged and
// swallowed so progress delivery never blocks generation.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, event ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		telemetry.Warn("events.marshal_failed", map[string]any{"error": err.Error()})
		return
	}
	if err := p.client.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		telemetry.Warn("events.publish_failed", map[string]any{
			"user_id": userID,
			"task_id": event.TaskID,
			"error":   err.Error(),
		})
	}
}

// Close releases the redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// ChannelFor returns the pub/sub channel name for a user's progress stream.
func ChannelFor(userID string) string {
	return "generation:progress:" + userID
}

var _ Publisher = (*RedisPublisher)(nil)
