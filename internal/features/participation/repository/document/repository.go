package document

import (
	"context"
	"errors"
	"fmt"

	"bytebattle-backend/internal/features/participation/models"
	"bytebattle-backend/internal/features/participation/repository"
	"bytebattle-backend/internal/platform/docstore"
)

const Collection = "participations"

type participationRepository struct {
	store docstore.Store
}

func NewParticipationRepository(store docstore.Store) repository.ParticipationRepository {
	return &participationRepository{store: store}
}

func decode(doc *docstore.Document) (*models.Participation, error) {
	var p models.Participation
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
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

func (r *participationRepository) GetByID(ctx context.Context, id string) (*models.Participation, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(doc)
}

func (r *participationRepository) find(ctx context.Context, q docstore.Query) ([]*models.Participation, error) {
	q.Collection = Collection
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Participation, 0, len(docs))
	for i := range docs {
		p, err := decode(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("decode participation %s: %w", docs[i].ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *participationRepository) Find(ctx context.Context, filter models.Filter) ([]*models.Participation, error) {
	q := docstore.Query{OrderBy: models.FieldCreatedAt, Descending: true}
	if filter.UserID != "" {
		q.Filters = append(q.Filters, docstore.Where(models.FieldUserID, docstore.Eq, filter.UserID))
	}
	if filter.ChallengeID != "" {
		q.Filters = append(q.Filters, docstore.Where(models.FieldChallengeID, docstore.Eq, filter.ChallengeID))
	}
	if filter.PaymentStatus != "" {
		q.Filters = append(q.Filters, docstore.Where(models.FieldPaymentStatus, docstore.Eq, filter.PaymentStatus))
	}
	return r.find(ctx, q)
}

func (r *participationRepository) Scored(ctx context.Context, challengeID string) ([]*models.Participation, error) {
	return r.find(ctx, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where(models.FieldChallengeID, docstore.Eq, challengeID),
			docstore.Where(models.FieldPaymentStatus, docstore.Eq, models.PaymentConfirmed),
			docstore.Where(models.FieldScore, docstore.Gt, 0),
		},
		OrderBy:    models.FieldScore,
		Descending: true,
	})
}

func (r *participationRepository) GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.Participation, error) {
	doc, err := tx.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(doc)
}

func (r *participationRepository) CreateTx(ctx context.Context, tx docstore.Tx, p *models.Participation) error {
	fields, err := docstore.Encode(p)
	if err != nil {
		return err
	}
	return mapErr(tx.Create(ctx, Collection, p.ID, fields))
}

func (r *participationRepository) UpdateTx(ctx context.Context, tx docstore.Tx, id string, fields docstore.Fields) error {
	return mapErr(tx.Update(ctx, Collection, id, fields))
}
