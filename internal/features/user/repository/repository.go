package repository

import (
	"context"
	"errors"

	"bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/platform/docstore"
)

var ErrNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, fields docstore.Fields) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)

	// Transactional variants used by the participation and settlement flows.
	GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.User, error)
	IncrementTx(ctx context.Context, tx docstore.Tx, id, field string, delta int64) error
}
