// Package memstore is an in-process docstore.Store. Transactions are
// serialized behind a single lock, which makes it suitable for tests and
// single-instance local runs.
package memstore

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"bytebattle-backend/internal/platform/docstore"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]docstore.Fields

	commitFailures []error
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]map[string]docstore.Fields)}
}

// FailNextCommit makes the next transaction commit fail with err and apply
// none of its writes. Calls queue up.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitFailures = append(s.commitFailures, err)
}

func (s *Store) collection(name string) map[string]docstore.Fields {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]docstore.Fields)
		s.collections[name] = c
	}
	return c
}

func (s *Store) get(collection, id string) (*docstore.Document, error) {
	data, ok := s.collection(collection)[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &docstore.Document{ID: id, Data: docstore.Clone(data)}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, id)
}

func (s *Store) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	docs := make([]docstore.Document, 0, len(s.collection(q.Collection)))
	for id, data := range s.collection(q.Collection) {
		docs = append(docs, docstore.Document{ID: id, Data: docstore.Clone(data)})
	}
	s.mu.Unlock()
	return docstore.Apply(docs, q), nil
}

func (s *Store) create(collection, id string, data docstore.Fields) error {
	c := s.collection(collection)
	if _, exists := c[id]; exists {
		return docstore.ErrAlreadyExists
	}
	c[id] = data
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := docstore.Normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(collection, id, norm)
}

func (s *Store) Set(ctx context.Context, collection, id string, data docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := docstore.Normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = norm
	return nil
}

func (s *Store) update(collection, id string, fields docstore.Fields) error {
	doc, ok := s.collection(collection)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(collection, id, norm)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, ok := c[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(c, id)
	return nil
}

func (s *Store) increment(collection, id, field string, delta int64) error {
	doc, ok := s.collection(collection)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	cur, err := docstore.AsInt64(doc[field])
	if err != nil {
		return err
	}
	doc[field] = json.Number(strconv.FormatInt(cur+delta, 10))
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment(collection, id, field, delta)
}

// RunTransaction holds the store lock for the whole of fn; fn must only
// use tx, never the Store itself.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, created: make(map[string]bool)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(s.commitFailures) > 0 {
		err := s.commitFailures[0]
		s.commitFailures = s.commitFailures[1:]
		return err
	}

	// Stage on copies so a failing op leaves committed state untouched.
	shadow := &Store{collections: make(map[string]map[string]docstore.Fields)}
	for _, o := range t.ops {
		if _, ok := shadow.collections[o.collection]; ok {
			continue
		}
		c := make(map[string]docstore.Fields, len(s.collection(o.collection)))
		for id, data := range s.collection(o.collection) {
			c[id] = docstore.Clone(data)
		}
		shadow.collections[o.collection] = c
	}
	for _, o := range t.ops {
		if err := o.apply(shadow); err != nil {
			return err
		}
	}
	for name, c := range shadow.collections {
		s.collections[name] = c
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

type op struct {
	collection string
	apply      func(*Store) error
}

type tx struct {
	store   *Store
	ops     []op
	created map[string]bool
}

func (t *tx) exists(collection, id string) bool {
	if t.created[collection+"/"+id] {
		return true
	}
	_, ok := t.store.collection(collection)[id]
	return ok
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.get(collection, id)
}

func (t *tx) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	if t.exists(collection, id) {
		return docstore.ErrAlreadyExists
	}
	norm, err := docstore.Normalize(data)
	if err != nil {
		return err
	}
	t.created[collection+"/"+id] = true
	t.ops = append(t.ops, op{collection: collection, apply: func(s *Store) error {
		return s.create(collection, id, norm)
	}})
	return nil
}

func (t *tx) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if !t.exists(collection, id) {
		return docstore.ErrNotFound
	}
	norm, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, op{collection: collection, apply: func(s *Store) error {
		return s.update(collection, id, norm)
	}})
	return nil
}

func (t *tx) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if !t.exists(collection, id) {
		return docstore.ErrNotFound
	}
	t.ops = append(t.ops, op{collection: collection, apply: func(s *Store) error {
		return s.increment(collection, id, field, delta)
	}})
	return nil
}
