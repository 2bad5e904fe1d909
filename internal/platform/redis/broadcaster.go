// Package redis provides the pub/sub adapter that broadcasts task status
// transitions for realtime observers. Delivery is best-effort: no
// persistence, no replay, no subscriber acknowledgment.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tasklab/taskflow/internal/events"
)

// Broadcaster publishes task status messages on a single shared channel.
// All tasks share one channel; subscribers filter by task_id. A subscriber
// that connects mid-lifecycle only sees the transitions published after it
// subscribed.
type Broadcaster struct {
	url     string
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	client *redis.Client
}

// NewBroadcaster creates a Broadcaster for the given Redis URL and channel
// name. No connection is established until Connect.
func NewBroadcaster(url, channel string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		url:     url,
		channel: channel,
		logger:  logger.With("component", "status_broadcaster"),
	}
}

// Connect allocates the Redis client and verifies the connection with a
// ping. Idempotent: an existing client makes it a no-op.
func (b *Broadcaster) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return nil
	}

	opts, err := redis.ParseURL(b.url)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b.client = client
	b.logger.Info("redis connection established", "channel", b.channel)
	return nil
}

// Publish serializes the status message and publishes it on the broadcast
// channel. The Redis client is safe for concurrent use, so concurrent
// lifecycle transitions may publish through the same handle.
func (b *Broadcaster) Publish(ctx context.Context, msg *events.TaskStatusMessage) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if client == nil {
		return fmt.Errorf("broadcaster is not connected")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize status message: %w", err)
	}

	if err := client.Publish(ctx, b.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish status message: %w", err)
	}

	b.logger.Debug("broadcast status message",
		"task_id", msg.TaskID,
		"status", msg.Status,
		"progress", msg.Progress)
	return nil
}

// Close releases the Redis connection.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	err := b.client.Close()
	b.client = nil
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}
