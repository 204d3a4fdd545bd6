package repository

import (
	"context"
	"errors"

	"bytebattle-backend/internal/features/challenge/models"
	"bytebattle-backend/internal/platform/docstore"
)

var ErrNotFound = errors.New("challenge not found")

type ChallengeRepository interface {
	Create(ctx context.Context, c *models.Challenge) error
	GetByID(ctx context.Context, id string) (*models.Challenge, error)
	// List returns challenges ordered by start date; an empty status means all.
	List(ctx context.Context, status models.Status) ([]*models.Challenge, error)
	Update(ctx context.Context, id string, fields docstore.Fields) error
	IncrementPot(ctx context.Context, id string, amount int64) error

	GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.Challenge, error)
	UpdateTx(ctx context.Context, tx docstore.Tx, id string, fields docstore.Fields) error
	IncrementPotTx(ctx context.Context, tx docstore.Tx, id string, amount int64) error
}
