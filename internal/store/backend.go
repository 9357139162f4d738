// Package store defines the query model shared by every data backend and the
// contract those backends implement.
package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// RemoteError wraps a failure reported by the backing store. The message is
// opaque; callers only distinguish it from validation and business errors.
type RemoteError struct {
	Op    string
	Table string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

type AggregateSpec struct {
	GroupBy string
	Sum     string
	Where   []Predicate
}

type Bucket struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum,omitempty"`
}

// Backend executes single-statement, single-table operations. Row payloads are
// JSON arrays, the shape returned by the hosted REST layer.
type Backend interface {
	Select(ctx context.Context, q Query) ([]byte, error)
	Insert(ctx context.Context, table string, rec Record) ([]byte, error)
	Upsert(ctx context.Context, table string, rec Record, onConflict string) ([]byte, error)
	Update(ctx context.Context, table string, where []Predicate, patch Record) ([]byte, error)
	Delete(ctx context.Context, table string, where []Predicate) ([]byte, error)
	Aggregate(ctx context.Context, table string, spec AggregateSpec) ([]Bucket, error)
	Call(ctx context.Context, fn string, args Record) ([]byte, error)
}
