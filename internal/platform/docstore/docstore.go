// Package docstore is a small document-store abstraction: schemaless
// documents grouped in collections, equality/range queries, atomic field
// increments and multi-document transactions.
//
// Backends: memstore (tests, local runs), redisstore and pgstore.
package docstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Fields is the document body. Values are JSON-compatible.
type Fields map[string]interface{}

type Document struct {
	ID   string
	Data Fields
}

type Op string

const (
	Eq  Op = "=="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

func Where(field string, op Op, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	// Zero means no limit.
	Limit  int
	Offset int
}

// Tx is a transaction handle. All reads must happen before the first write:
// whether a read sees the transaction's own earlier writes is backend-specific.
type Tx interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection, id string, data Fields) error
	Update(ctx context.Context, collection, id string, fields Fields) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}

// TxFunc is retried on conflict, so it must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

type Transactor interface {
	RunTransaction(ctx context.Context, fn TxFunc) error
}

type Store interface {
	Transactor

	Get(ctx context.Context, collection, id string) (*Document, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	Create(ctx context.Context, collection, id string, data Fields) error
	Set(ctx context.Context, collection, id string, data Fields) error
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	Ping(ctx context.Context) error
	Close() error
}

type transientError string

func (e transientError) Error() string   { return string(e) }
func (e transientError) Temporary() bool { return true }

var (
	ErrNotFound      = errors.New("docstore: document not found")
	ErrAlreadyExists = errors.New("docstore: document already exists")

	// ErrConflict is returned when a transaction keeps losing optimistic
	// concurrency checks after all retries.
	ErrConflict    error = transientError("docstore: transaction conflict")
	ErrUnavailable error = transientError("docstore: store unavailable")
)

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func NewID() string {
	return uuid.NewString()
}
