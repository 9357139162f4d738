package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

// Store runs the accessor operations directly against Postgres. Every
// row-returning statement is folded into a JSON array server-side so the
// payload matches what the hosted REST layer returns.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]byte, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, &store.RemoteError{Op: "select", Table: q.Table, Err: err}
	}
	return s.queryJSON(ctx, "select", q.Table, query, args)
}

func (s *Store) Insert(ctx context.Context, table string, rec store.Record) ([]byte, error) {
	query, args := buildInsert(table, rec, "")
	return s.queryJSON(ctx, "insert", table, query, args)
}

func (s *Store) Upsert(ctx context.Context, table string, rec store.Record, onConflict string) ([]byte, error) {
	query, args := buildInsert(table, rec, onConflict)
	return s.queryJSON(ctx, "upsert", table, query, args)
}

func (s *Store) Update(ctx context.Context, table string, where []store.Predicate, patch store.Record) ([]byte, error) {
	query, args, err := buildUpdate(table, where, patch)
	if err != nil {
		return nil, &store.RemoteError{Op: "update", Table: table, Err: err}
	}
	return s.queryJSON(ctx, "update", table, query, args)
}

func (s *Store) Delete(ctx context.Context, table string, where []store.Predicate) ([]byte, error) {
	query, args, err := buildDelete(table, where)
	if err != nil {
		return nil, &store.RemoteError{Op: "delete", Table: table, Err: err}
	}
	return s.queryJSON(ctx, "delete", table, query, args)
}

func (s *Store) Aggregate(ctx context.Context, table string, spec store.AggregateSpec) ([]store.Bucket, error) {
	query, args, err := buildAggregate(table, spec)
	if err != nil {
		return nil, &store.RemoteError{Op: "aggregate", Table: table, Err: err}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &store.RemoteError{Op: "aggregate", Table: table, Err: err}
	}
	defer rows.Close()

	buckets := []store.Bucket{}
	for rows.Next() {
		var b store.Bucket
		if err := rows.Scan(&b.Key, &b.Count, &b.Sum); err != nil {
			return nil, &store.RemoteError{Op: "aggregate", Table: table, Err: fmt.Errorf("scan bucket: %w", err)}
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.RemoteError{Op: "aggregate", Table: table, Err: err}
	}
	return buckets, nil
}

func (s *Store) Call(ctx context.Context, fn string, args store.Record) ([]byte, error) {
	query, bound := buildCall(fn, args)

	var result []byte
	if err := s.db.QueryRowContext(ctx, query, bound...).Scan(&result); err != nil {
		return nil, &store.RemoteError{Op: "rpc", Table: fn, Err: err}
	}
	return result, nil
}

func (s *Store) queryJSON(ctx context.Context, op, table, query string, args []any) ([]byte, error) {
	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		return nil, &store.RemoteError{Op: op, Table: table, Err: err}
	}
	if !json.Valid(payload) {
		return nil, &store.RemoteError{Op: op, Table: table, Err: fmt.Errorf("invalid json payload")}
	}
	return payload, nil
}
