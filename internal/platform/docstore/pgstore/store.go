// Package pgstore keeps documents in a single PostgreSQL table with a JSONB
// body. Queries are translated to JSONB operators; transactions take row
// locks with SELECT ... FOR UPDATE and are retried on serialization failures.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bytebattle-backend/internal/platform/docstore"
)

const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data);
`

const defaultMaxRetries = 5

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	db         *sql.DB
	maxRetries int
}

var _ docstore.Store = (*Store)(nil)

func New(db *sql.DB, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{db: db, maxRetries: maxRetries}
}

// Migrate creates the documents table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", wrapErr(err))
	}
	return nil
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return docstore.ErrAlreadyExists
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
		}
		if pqErr.Code.Class() == "08" {
			return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}

func decodeData(raw []byte) (docstore.Fields, error) {
	var data docstore.Fields
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("pgstore: decode: %w", err)
	}
	if data == nil {
		data = docstore.Fields{}
	}
	return data, nil
}

func encodeData(data docstore.Fields) ([]byte, error) {
	norm, err := docstore.Normalize(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

func get(ctx context.Context, q querier, collection, id string, forUpdate bool) (*docstore.Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var raw []byte
	if err := q.QueryRowContext(ctx, query, collection, id).Scan(&raw); err != nil {
		return nil, wrapErr(err)
	}
	data, err := decodeData(raw)
	if err != nil {
		return nil, err
	}
	return &docstore.Document{ID: id, Data: data}, nil
}

func create(ctx context.Context, q querier, collection, id string, data docstore.Fields) error {
	body, err := encodeData(data)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb) ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(body))
	if err != nil {
		return wrapErr(err)
	}
	return expectRow(res, docstore.ErrAlreadyExists)
}

func update(ctx context.Context, q querier, collection, id string, fields docstore.Fields) error {
	body, err := encodeData(fields)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, string(body))
	if err != nil {
		return wrapErr(err)
	}
	return expectRow(res, docstore.ErrNotFound)
}

func increment(ctx context.Context, q querier, collection, id, field string, delta int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE documents
		    SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3::text)::bigint, 0) + $4::bigint)),
		        updated_at = now()
		  WHERE collection = $1 AND id = $2`,
		collection, id, field, delta)
	if err != nil {
		return wrapErr(err)
	}
	return expectRow(res, docstore.ErrNotFound)
}

func expectRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return otherwise
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return get(ctx, s.db, collection, id, false)
}

func (s *Store) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	query, args, err := buildFind(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, wrapErr(err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Data: data})
	}
	return docs, wrapErr(rows.Err())
}

// buildFind translates a query to SQL. Field names are always bound as
// parameters, never interpolated.
func buildFind(q docstore.Query) (string, []interface{}, error) {
	var sb strings.Builder
	args := []interface{}{q.Collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, f := range q.Filters {
		value, err := docstore.NormalizeValue(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("pgstore: filter %s: %w", f.Field, err)
		}
		field := next(f.Field)

		if value == nil {
			if f.Op != docstore.Eq {
				return "", nil, fmt.Errorf("pgstore: operator %s not supported for null", f.Op)
			}
			fmt.Fprintf(&sb, ` AND (data->%s::text IS NULL OR data->%s::text = 'null'::jsonb)`, field, field)
			continue
		}

		op := string(f.Op)
		if f.Op == docstore.Eq {
			op = "="
		}
		switch v := value.(type) {
		case json.Number:
			fmt.Fprintf(&sb, ` AND jsonb_typeof(data->%s::text) = 'number' AND (data->>%s::text)::numeric %s %s::numeric`,
				field, field, op, next(v.String()))
		case string:
			if _, err := time.Parse(time.RFC3339Nano, v); err == nil && f.Op != docstore.Eq {
				fmt.Fprintf(&sb, ` AND (data->>%s::text)::timestamptz %s %s::timestamptz`, field, op, next(v))
			} else {
				fmt.Fprintf(&sb, ` AND data->>%s::text %s %s`, field, op, next(v))
			}
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return "", nil, err
			}
			fmt.Fprintf(&sb, ` AND data->%s::text %s %s::jsonb`, field, op, next(string(raw)))
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		// RFC3339 strings order by instant, not text: trimmed fractions
		// make "12:00:00.5Z" sort before "12:00:00Z" as text.
		field := next(q.OrderBy)
		fmt.Fprintf(&sb, ` ORDER BY (CASE WHEN jsonb_typeof(data->%[1]s::text) = 'string'`+
			` AND data->>%[1]s::text ~ '%[3]s' THEN (data->>%[1]s::text)::timestamptz END) %[2]s NULLS LAST,`+
			` data->%[1]s::text %[2]s NULLS LAST, id ASC`, field, dir, timestampPattern)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %s`, next(q.Limit))
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, ` OFFSET %s`, next(q.Offset))
	}
	return sb.String(), args, nil
}

const timestampPattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}`

func (s *Store) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	return create(ctx, s.db, collection, id, data)
}

func (s *Store) Set(ctx context.Context, collection, id string, data docstore.Fields) error {
	body, err := encodeData(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, string(body))
	return wrapErr(err)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return update(ctx, s.db, collection, id, fields)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return wrapErr(err)
	}
	return expectRow(res, docstore.ErrNotFound)
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return increment(ctx, s.db, collection, id, field, delta)
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.runOnce(ctx, fn)
		if !errors.Is(err, docstore.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn docstore.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err)
	}
	t := &tx{q: sqlTx}
	if err := fn(ctx, t); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrapErr(s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	q querier
}

func (t *tx) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return get(ctx, t.q, collection, id, true)
}

func (t *tx) Create(ctx context.Context, collection, id string, data docstore.Fields) error {
	return create(ctx, t.q, collection, id, data)
}

func (t *tx) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return update(ctx, t.q, collection, id, fields)
}

func (t *tx) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return increment(ctx, t.q, collection, id, field, delta)
}
