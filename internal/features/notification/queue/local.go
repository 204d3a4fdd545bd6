package queue

import (
	"context"
	"sync"

	"bytebattle-backend/internal/common/logger"
	"bytebattle-backend/internal/features/notification/models"
)

// LocalQueue hands events to a fixed pool of in-process workers.
type LocalQueue struct {
	events  chan models.Event
	handler Handler
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalQueue(handler Handler, workers, buffer int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	return &LocalQueue{
		events:  make(chan models.Event, buffer),
		handler: handler,
		workers: workers,
	}
}

// Start launches the workers. They drain the buffer after Close.
func (q *LocalQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
	logger.Info().Int("workers", q.workers).Msg("Local notification queue started")
}

func (q *LocalQueue) work(ctx context.Context, id int) {
	defer q.wg.Done()
	for event := range q.events {
		if err := q.handler(context.WithoutCancel(ctx), event); err != nil {
			logger.Error().
				Err(err).
				Int("worker", id).
				Str("event_id", event.ID).
				Str("kind", string(event.Kind)).
				Msg("Failed to handle notification event")
		}
	}
}

func (q *LocalQueue) Publish(ctx context.Context, event models.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the workers to finish.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
