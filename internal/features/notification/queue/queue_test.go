package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytebattle-backend/internal/features/notification/models"
)

func TestLocalQueueDrainsOnClose(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewLocalQueue(func(_ context.Context, e models.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.ID)
		return nil
	}, 3, 8)
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Publish(context.Background(), models.Event{ID: id, Kind: models.EventUser}))
	}
	q.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, seen)
	assert.ErrorIs(t, q.Publish(context.Background(), models.Event{ID: "e"}), ErrClosed)
}

func TestLocalQueuePublishRespectsContext(t *testing.T) {
	q := NewLocalQueue(func(context.Context, models.Event) error { return nil }, 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// No workers started and no buffer, so the send cannot complete.
	err := q.Publish(ctx, models.Event{ID: "a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisStreamQueuePublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisStreamQueue(client, "notifications:events", 100)
	event := models.Event{
		ID:         "e1",
		Kind:       models.EventSettlement,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Settlement: &models.Settlement{ChallengeID: "c1", WinnerID: "alice", Prize: 500},
	}
	require.NoError(t, q.Publish(context.Background(), event))

	entries, err := client.XRange(context.Background(), "notifications:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settlement", entries[0].Values["kind"])

	decoded, err := Decode(entries[0].Values)
	require.NoError(t, err)
	assert.Equal(t, "e1", decoded.ID)
	require.NotNil(t, decoded.Settlement)
	assert.Equal(t, int64(500), decoded.Settlement.Prize)
}

func TestDecodeRejectsForeignEntries(t *testing.T) {
	_, err := Decode(map[string]interface{}{"type": "bot_removed"})
	assert.Error(t, err)

	_, err = Decode(map[string]interface{}{"event": "{not json"})
	assert.Error(t, err)
}
