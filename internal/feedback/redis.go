package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror appends items to a Redis stream.
type RedisMirror struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisMirror connects to the Redis server at url. maxLen, when
// positive, caps the stream length approximately.
func NewRedisMirror(url, stream string, maxLen int64) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.Info("feedback redis mirror connected", "stream", stream)
	return &RedisMirror{client: client, stream: stream, maxLen: maxLen}, nil
}

// Name returns the mirror identifier.
func (m *RedisMirror) Name() string { return "redis" }

// Write adds item to the stream.
func (m *RedisMirror) Write(ctx context.Context, item Item) error {
	rec, err := encodeRecord(item)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: m.stream,
		Values: map[string]any{"id": item.ID, "item": string(rec)},
	}
	if m.maxLen > 0 {
		args.MaxLen = m.maxLen
		args.Approx = true
	}
	if err := m.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
