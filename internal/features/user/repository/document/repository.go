package document

import (
	"context"
	"errors"
	"fmt"

	"bytebattle-backend/internal/features/user/models"
	"bytebattle-backend/internal/features/user/repository"
	"bytebattle-backend/internal/platform/docstore"
)

const Collection = "users"

type userRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) repository.UserRepository {
	return &userRepository{store: store}
}

func decodeUser(doc *docstore.Document) (*models.User, error) {
	var u models.User
	if err := doc.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func mapErr(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	fields, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, Collection, user.ID, fields)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeUser(doc)
}

func (r *userRepository) Update(ctx context.Context, id string, fields docstore.Fields) error {
	return mapErr(r.store.Update(ctx, Collection, id, fields))
}

func (r *userRepository) find(ctx context.Context, q docstore.Query) ([]*models.User, error) {
	q.Collection = Collection
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		u, err := decodeUser(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("decode user %s: %w", docs[i].ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return r.find(ctx, docstore.Query{OrderBy: "createdAt", Descending: true, Limit: limit, Offset: offset})
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return r.find(ctx, docstore.Query{Filters: []docstore.Filter{docstore.Where("role", docstore.Eq, role)}})
}

func (r *userRepository) GetTx(ctx context.Context, tx docstore.Tx, id string) (*models.User, error) {
	doc, err := tx.Get(ctx, Collection, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeUser(doc)
}

func (r *userRepository) IncrementTx(ctx context.Context, tx docstore.Tx, id, field string, delta int64) error {
	return mapErr(tx.Increment(ctx, Collection, id, field, delta))
}
