package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/queue"
	"bytebattle-backend/internal/platform/docstore"
)

// Sink is the producer side used by the workflows. Publishing is bounded by
// a timeout and failures are only logged.
type Sink struct {
	queue   queue.Queue
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewSink(q queue.Queue, timeout time.Duration, logger *zap.Logger) *Sink {
	return &Sink{queue: q, timeout: timeout, logger: logger, now: time.Now}
}

func (s *Sink) Notify(ctx context.Context, userID, title, message string, kind models.Type) {
	s.publish(ctx, models.Event{
		Kind:    models.EventUser,
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
	})
}

func (s *Sink) NotifyAdmins(ctx context.Context, title, message string) {
	s.publish(ctx, models.Event{
		Kind:    models.EventAdmins,
		Title:   title,
		Message: message,
		Type:    models.TypeAdmin,
	})
}

func (s *Sink) NotifySettlement(ctx context.Context, event models.Settlement) {
	s.publish(ctx, models.Event{
		Kind:       models.EventSettlement,
		Settlement: &event,
	})
}

func (s *Sink) publish(ctx context.Context, event models.Event) {
	event.ID = docstore.NewID()
	event.CreatedAt = s.now().UTC()

	// Detached from request cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.queue.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish notification event",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
			zap.String("user_id", event.UserID))
	}
}
