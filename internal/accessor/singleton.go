package accessor

import (
	"context"

	"github.com/xavierca1/firm-backoffice/internal/querycache"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

const singletonID = 1

// Singleton reads and wholesale-writes a one-row settings table. Concurrent
// saves are last-write-wins.
type Singleton[T any] struct {
	table    string
	domain   querycache.Domain
	fallback func() T
	deps     Deps
}

func NewSingleton[T any](deps Deps, table string, domain querycache.Domain, fallback func() T) *Singleton[T] {
	return &Singleton[T]{table: table, domain: domain, fallback: fallback, deps: deps.withDefaults()}
}

// Get returns the stored row, or the fallback when none has been saved yet.
func (s *Singleton[T]) Get(ctx context.Context) (*T, error) {
	v, err := s.deps.Cache.Load(ctx, s.domain, "row", func(ctx context.Context) (any, error) {
		body, err := s.deps.Backend.Select(ctx, store.Query{
			Table: s.table,
			Where: []store.Predicate{store.Eq("id", singletonID)},
			Limit: 1,
		})
		if err != nil {
			return nil, logRemote(s.deps.Logger, "select", s.table, err)
		}
		rows, err := decodeRows[T](body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return s.fallback(), nil
		}
		return rows[0], nil
	})
	if err != nil {
		return nil, err
	}
	row := v.(T)
	return &row, nil
}

func (s *Singleton[T]) Save(ctx context.Context, v *T) (*T, error) {
	if s.deps.Validate != nil {
		if err := s.deps.Validate(v); err != nil {
			return nil, err
		}
	}

	rec, err := store.ToRecord(v)
	if err != nil {
		return nil, err
	}
	rec["id"] = singletonID
	rec["updated_at"] = s.deps.Now().UTC()

	body, err := s.deps.Backend.Upsert(ctx, s.table, rec, "id")
	if err != nil {
		return nil, logRemote(s.deps.Logger, "upsert", s.table, err)
	}
	invalidate(ctx, s.deps, s.domain)
	return firstRow[T](body)
}
