package repository

import (
	"context"
	"errors"

	"bytebattle-backend/internal/features/participation/models"
	"bytebattle-backend/internal/platform/docstore"
)

var (
	ErrNotFound      = errors.New("participation not found")
	ErrAlreadyExists = errors.New("participation already exists")
)

type ParticipationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Participation, error)
	// Find returns matching participations, newest first.
	Find(ctx context.Context, filter models.Filter) ([]*models.Participation, error)
	// Scored returns confirmed participations of a challenge with a score
	// above zero, best score first.
	Scored(ctx context.Context, challengeID string) ([]*models.Participation, error)

	GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.Participation, error)
	CreateTx(ctx context.Context, tx docstore.Tx, p *models.Participation) error
	UpdateTx(ctx context.Context, tx docstore.Tx, id string, fields docstore.Fields) error
}
