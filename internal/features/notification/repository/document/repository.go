package document

import (
	"context"
	"errors"
	"fmt"

	"bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/repository"
	"bytebattle-backend/internal/platform/docstore"
)

const Collection = "notifications"

type notificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) repository.NotificationRepository {
	return &notificationRepository{store: store}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return repository.ErrNotFound
	case errors.Is(err, docstore.ErrAlreadyExists):
		return repository.ErrAlreadyExists
	}
	return err
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	fields, err := docstore.Encode(n)
	if err != nil {
		return err
	}
	return mapErr(r.store.Create(ctx, Collection, n.ID, fields))
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	var n models.Notification
	if err := doc.Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	docs, err := r.store.Find(ctx, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where(models.FieldUserID, docstore.Eq, userID)},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Notification, 0, len(docs))
	for i := range docs {
		var n models.Notification
		if err := docs[i].Decode(&n); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", docs[i].ID, err)
		}
		out = append(out, &n)
	}
	return out, nil
}

func (r *notificationRepository) Update(ctx context.Context, id string, fields docstore.Fields) error {
	return mapErr(r.store.Update(ctx, Collection, id, fields))
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.store.Delete(ctx, Collection, id))
}
