// Package queue carries notification events from producers to the consumer
// that fans them out into per-user notifications.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bytebattle-backend/internal/features/notification/models"
)

var ErrClosed = errors.New("queue: closed")

type Queue interface {
	Publish(ctx context.Context, event models.Event) error
}

// Handler consumes one event.
type Handler func(ctx context.Context, event models.Event) error

// payloadField is the stream entry field holding the JSON-encoded event.
const payloadField = "event"

func encode(event models.Event) (map[string]interface{}, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return map[string]interface{}{
		payloadField: string(raw),
		"kind":       string(event.Kind),
	}, nil
}

// Decode restores an event from stream entry values.
func Decode(values map[string]interface{}) (models.Event, error) {
	var event models.Event
	raw, ok := values[payloadField].(string)
	if !ok {
		return event, fmt.Errorf("missing %q field", payloadField)
	}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return event, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}
