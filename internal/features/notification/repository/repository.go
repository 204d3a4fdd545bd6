package repository

import (
	"context"
	"errors"

	"bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/platform/docstore"
)

var (
	ErrNotFound      = errors.New("notification not found")
	ErrAlreadyExists = errors.New("notification already exists")
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	// ListByUser returns the user's notifications, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	Update(ctx context.Context, id string, fields docstore.Fields) error
	Delete(ctx context.Context, id string) error
}
