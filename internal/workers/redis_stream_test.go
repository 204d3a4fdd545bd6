package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	go_redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notificationmodels "bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/queue"
)

func newStreamWorker(t *testing.T, handler queue.Handler) (*RedisStreamWorker, *queue.RedisStreamQueue, *go_redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := go_redis.NewClient(&go_redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := StreamConfig{Stream: "notifications:events", Group: "workers", Consumer: "w1", Block: 50 * time.Millisecond}
	return NewRedisStreamWorker(client, cfg, handler), queue.NewRedisStreamQueue(client, cfg.Stream, 0), client
}

func TestRedisStreamWorkerHandlesAndAcks(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	worker, q, client := newStreamWorker(t, func(_ context.Context, e notificationmodels.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.ID)
		if e.ID == "bad" {
			return errors.New("handler failed")
		}
		return nil
	})
	ctx := context.Background()
	require.NoError(t, worker.EnsureGroup(ctx))
	require.NoError(t, worker.EnsureGroup(ctx))

	require.NoError(t, q.Publish(ctx, notificationmodels.Event{ID: "e1", Kind: notificationmodels.EventUser, UserID: "alice"}))
	require.NoError(t, q.Publish(ctx, notificationmodels.Event{ID: "bad", Kind: notificationmodels.EventUser, UserID: "bob"}))
	require.NoError(t, client.XAdd(ctx, &go_redis.XAddArgs{
		Stream: "notifications:events",
		Values: map[string]interface{}{"type": "unrelated"},
	}).Err())

	n, err := worker.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"e1", "bad"}, seen)

	pending, err := client.XPending(ctx, "notifications:events", "workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestRedisStreamWorkerStopsOnCancel(t *testing.T) {
	worker, _, _ := newStreamWorker(t, func(context.Context, notificationmodels.Event) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
