package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bytebattle-backend/internal/features/notification/models"
)

// RedisStreamQueue appends events to a Redis stream read by a consumer group.
type RedisStreamQueue struct {
	client redis.Cmdable
	stream string
	// Approximate stream length cap; zero keeps everything.
	maxLen int64
}

func NewRedisStreamQueue(client redis.Cmdable, stream string, maxLen int64) *RedisStreamQueue {
	return &RedisStreamQueue{client: client, stream: stream, maxLen: maxLen}
}

func (q *RedisStreamQueue) Stream() string {
	return q.stream
}

func (q *RedisStreamQueue) Publish(ctx context.Context, event models.Event) error {
	values, err := encode(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{Stream: q.stream, Values: values}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	return nil
}
