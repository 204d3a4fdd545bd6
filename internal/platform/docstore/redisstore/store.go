// Package redisstore keeps documents in Redis hashes.
//
// Layout: one hash per document at doc:{collection}:{id} whose fields hold
// JSON-encoded values, plus a set docs:{collection} listing the ids.
// Transactions use WATCH/MULTI/EXEC and are retried when a watched key
// changes underneath them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bytebattle-backend/internal/platform/docstore"
)

// hidden field that keeps empty documents from disappearing
const idMarker = "__id"

// Each optimistic lock failure means another writer committed, so a
// transaction loses at most once per competing commit.
const defaultMaxRetries = 50

const (
	retryBaseDelay = 2 * time.Millisecond
	retryMaxDelay  = 50 * time.Millisecond
)

type Store struct {
	client     redis.UniversalClient
	maxRetries int
}

var _ docstore.Store = (*Store)(nil)

type Option func(*Store)

func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func indexKey(collection string) string {
	return fmt.Sprintf("docs:%s", collection)
}

func encodeFields(id string, data docstore.Fields) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		if k == "id" || strings.HasPrefix(k, "__") {
			continue
		}
		enc, err := docstore.EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("redisstore: encode %s: %w", k, err)
		}
		out[k] = enc
	}
	if id != "" {
		out[idMarker] = id
	}
	return out, nil
}

func decodeDocument(id string, raw map[string]string) (*docstore.Document, error) {
	if len(raw) == 0 {
		return nil, docstore.ErrNotFound
	}
	data := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, "__") {
			continue
		}
		val, err := docstore.DecodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("redisstore: decode %s.%s: %w", id, k, err)
		}
		data[k] = val
	}
	return &docstore.Document{ID: id, Data: data}, nil
}

// wrapErr marks connection-level failures as docstore.ErrUnavailable and
// passes everything else through unchanged.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	raw, err := s.client.HGetAll(ctx, docKey(collection, id)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return decodeDocument(id, raw)
}

func (s *Store) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	ids, err := s.client.SMembers(ctx, indexKey(q.Collection)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, docKey(q.Collection, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapErr(err)
	}

	docs := make([]docstore.Document, 0, len(ids))
	for i, cmd := range cmds {
		doc, err := decodeDocument(ids[i], cmd.Val())
		if errors.Is(err, docstore.ErrNotFound) {
			// deleted between SMEMBERS and HGETALL
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docstore.Apply(docs, q), nil
}

// watched runs fn under WATCH on key and retries on optimistic lock failure
// with jittered backoff until the retries or the context run out.
func (s *Store) watched(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", docstore.ErrConflict, ctx.Err())
			case <-time.After(retryDelay(attempt)):
			}
		}
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return wrapErr(err)
	}
	return docstore.ErrConflict
}

// retryDelay picks a random delay up to an exponentially growing cap.
func retryDelay(attempt int) time.Duration {
	ceiling := retryMaxDelay
	if attempt < 6 {
		if d := retryBaseDelay << uint(attempt); d < ceiling {
			ceiling = d
		}
	}
	return time.Duration(rand.Int63n(int64(ceiling))) + time.Millisecond
}

func (s *Store) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	values, err := encodeFields(id, data)
	if err != nil {
		return err
	}
	key := docKey(collection, id)
	return s.watched(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return docstore.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.SAdd(ctx, indexKey(collection), id)
			return nil
		})
		return err
	}, key)
}

func (s *Store) Set(ctx context.Context, collection, id string, data docstore.Fields) error {
	values, err := encodeFields(id, data)
	if err != nil {
		return err
	}
	key := docKey(collection, id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		pipe.SAdd(ctx, indexKey(collection), id)
		return nil
	})
	return wrapErr(err)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	values, err := encodeFields("", fields)
	if err != nil {
		return err
	}
	key := docKey(collection, id)
	return s.watched(ctx, func(tx *redis.Tx) error {
		if err := mustExist(ctx, tx, key); err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			return nil
		})
		return err
	}, key)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	key := docKey(collection, id)
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, key)
		pipe.SRem(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		return wrapErr(err)
	}
	if deleted.Val() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	key := docKey(collection, id)
	return s.watched(ctx, func(tx *redis.Tx) error {
		if err := mustExist(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, key, field, delta)
			return nil
		})
		return err
	}, key)
}

func mustExist(ctx context.Context, tx *redis.Tx, key string) error {
	n, err := tx.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	return s.watched(ctx, func(rtx *redis.Tx) error {
		t := &tx{rtx: rtx, created: make(map[string]bool)}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if len(t.ops) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range t.ops {
				op(pipe)
			}
			return nil
		})
		return err
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return wrapErr(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}

type tx struct {
	rtx     *redis.Tx
	ops     []func(redis.Pipeliner)
	created map[string]bool
}

// watch adds key to the optimistic lock set before it is read.
func (t *tx) watch(ctx context.Context, key string) error {
	return t.rtx.Watch(ctx, key).Err()
}

func (t *tx) exists(ctx context.Context, key string) (bool, error) {
	if t.created[key] {
		return true, nil
	}
	if err := t.watch(ctx, key); err != nil {
		return false, err
	}
	n, err := t.rtx.Exists(ctx, key).Result()
	return n > 0, err
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	key := docKey(collection, id)
	if err := t.watch(ctx, key); err != nil {
		return nil, wrapErr(err)
	}
	raw, err := t.rtx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return decodeDocument(id, raw)
}

func (t *tx) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	key := docKey(collection, id)
	ok, err := t.exists(ctx, key)
	if err != nil {
		return wrapErr(err)
	}
	if ok {
		return docstore.ErrAlreadyExists
	}
	values, err := encodeFields(id, data)
	if err != nil {
		return err
	}
	t.created[key] = true
	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, values)
		pipe.SAdd(ctx, indexKey(collection), id)
	})
	return nil
}

func (t *tx) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	key := docKey(collection, id)
	ok, err := t.exists(ctx, key)
	if err != nil {
		return wrapErr(err)
	}
	if !ok {
		return docstore.ErrNotFound
	}
	values, err := encodeFields("", fields)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, values)
	})
	return nil
}

func (t *tx) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	key := docKey(collection, id)
	ok, err := t.exists(ctx, key)
	if err != nil {
		return wrapErr(err)
	}
	if !ok {
		return docstore.ErrNotFound
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) {
		pipe.HIncrBy(ctx, key, field, delta)
	})
	return nil
}
