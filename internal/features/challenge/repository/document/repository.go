package document

import (
	"context"
	"errors"
	"fmt"

	"bytebattle-backend/internal/features/challenge/models"
	"bytebattle-backend/internal/features/challenge/repository"
	"bytebattle-backend/internal/platform/docstore"
)

const Collection = "challenges"

type challengeRepository struct {
	store docstore.Store
}

func NewChallengeRepository(store docstore.Store) repository.ChallengeRepository {
	return &challengeRepository{store: store}
}

func decode(doc *docstore.Document) (*models.Challenge, error) {
	var c models.Challenge
	if err := doc.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func mapErr(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func (r *challengeRepository) Create(ctx context.Context, c *models.Challenge) error {
	fields, err := docstore.Encode(c)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, Collection, c.ID, fields)
}

func (r *challengeRepository) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(doc)
}

func (r *challengeRepository) List(ctx context.Context, status models.Status) ([]*models.Challenge, error) {
	q := docstore.Query{Collection: Collection, OrderBy: models.FieldStartDate}
	if status != "" {
		q.Filters = append(q.Filters, docstore.Where(models.FieldStatus, docstore.Eq, status))
	}
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Challenge, 0, len(docs))
	for i := range docs {
		c, err := decode(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("decode challenge %s: %w", docs[i].ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *challengeRepository) Update(ctx context.Context, id string, fields docstore.Fields) error {
	return mapErr(r.store.Update(ctx, Collection, id, fields))
}

func (r *challengeRepository) IncrementPot(ctx context.Context, id string, amount int64) error {
	return mapErr(r.store.Increment(ctx, Collection, id, models.FieldTotalPot, amount))
}

func (r *challengeRepository) GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.Challenge, error) {
	doc, err := tx.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(doc)
}

func (r *challengeRepository) UpdateTx(ctx context.Context, tx docstore.Tx, id string, fields docstore.Fields) error {
	return mapErr(tx.Update(ctx, Collection, id, fields))
}

func (r *challengeRepository) IncrementPotTx(ctx context.Context, tx docstore.Tx, id string, amount int64) error {
	return mapErr(tx.Increment(ctx, Collection, id, models.FieldTotalPot, amount))
}
