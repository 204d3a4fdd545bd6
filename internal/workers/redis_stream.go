package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"

	"bytebattle-backend/internal/common/logger"
	"bytebattle-backend/internal/features/notification/queue"
)

type StreamConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Entries read per XREADGROUP call.
	Batch int64
	Block time.Duration
}

// RedisStreamWorker consumes notification events from a Redis stream through
// a consumer group and hands each one to the handler.
type RedisStreamWorker struct {
	rdb     go_redis.UniversalClient
	cfg     StreamConfig
	handler queue.Handler
}

func NewRedisStreamWorker(rdb go_redis.UniversalClient, cfg StreamConfig, handler queue.Handler) *RedisStreamWorker {
	if cfg.Batch <= 0 {
		cfg.Batch = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &RedisStreamWorker{rdb: rdb, cfg: cfg, handler: handler}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (w *RedisStreamWorker) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Start blocks until ctx is cancelled.
func (w *RedisStreamWorker) Start(ctx context.Context) {
	if err := w.EnsureGroup(ctx); err != nil {
		logger.Error().Err(err).Str("stream", w.cfg.Stream).Msg("Error creating consumer group")
	}

	logger.Info().
		Str("stream", w.cfg.Stream).
		Str("group", w.cfg.Group).
		Str("consumer", w.cfg.Consumer).
		Msg("Starting Redis stream worker...")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping Redis stream worker...")
			return
		default:
		}

		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading from stream")
			// backoff on error
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll reads one batch, handles and acknowledges it. It returns the number
// of entries read.
func (w *RedisStreamWorker) Poll(ctx context.Context) (int, error) {
	entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
		Group:    w.cfg.Group,
		Consumer: w.cfg.Consumer,
		Streams:  []string{w.cfg.Stream, ">"},
		Count:    w.cfg.Batch,
		Block:    w.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, go_redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	read := 0
	for _, stream := range entries {
		for _, msg := range stream.Messages {
			read++
			w.processMessage(ctx, msg)
			if err := w.rdb.XAck(ctx, w.cfg.Stream, w.cfg.Group, msg.ID).Err(); err != nil {
				logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to ack stream message")
			}
		}
	}
	return read, nil
}

// processMessage never fails the batch: a malformed or failing entry is
// logged and acknowledged. Notification ids are derived from the event id, so
// replaying a stream entry by hand is safe.
func (w *RedisStreamWorker) processMessage(ctx context.Context, msg go_redis.XMessage) {
	event, err := queue.Decode(msg.Values)
	if err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Skipping malformed stream entry")
		return
	}

	if err := w.handler(ctx, event); err != nil {
		logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Str("event_id", event.ID).
			Str("kind", string(event.Kind)).
			Msg("Failed to handle notification event")
		return
	}
	logger.Debug().Str("event_id", event.ID).Str("kind", string(event.Kind)).Msg("Notification event handled")
}
