package docstore

import (
	"context"
	"time"
)

type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout bounds every call on s, including a whole transaction, by d.
// Deadlines already on the context are kept when they are shorter.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{Store: s, timeout: d}
}

func (s *timeoutStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Get(ctx, collection, id)
}

func (s *timeoutStore) Find(ctx context.Context, q Query) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Find(ctx, q)
}

func (s *timeoutStore) Create(ctx context.Context, collection, id string, data Fields) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Create(ctx, collection, id, data)
}

func (s *timeoutStore) Set(ctx context.Context, collection, id string, data Fields) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Set(ctx, collection, id, data)
}

func (s *timeoutStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *timeoutStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Delete(ctx, collection, id)
}

func (s *timeoutStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Increment(ctx, collection, id, field, delta)
}

func (s *timeoutStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.RunTransaction(ctx, fn)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Store.Ping(ctx)
}
