// Package accessor pairs every table with a cached read path, a write path
// that invalidates what it makes stale, and server-side aggregates.
package accessor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/querycache"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

var (
	ErrNotGroupable   = errors.New("column is not groupable")
	ErrUnboundedWrite = errors.New("refusing to write without a filter")
)

// Filter turns its present fields into predicates. Absent fields produce none.
type Filter interface {
	Predicates() []store.Predicate
}

// Notifier tells other instances which domains a local write invalidated.
type Notifier interface {
	Publish(ctx context.Context, domains []querycache.Domain) error
}

type defaulter interface {
	ApplyDefaults()
}

type Deps struct {
	Backend  store.Backend
	Cache    *querycache.Cache
	Notifier Notifier
	Validate func(any) error
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = querycache.New(0)
	}
	return d
}

// Table declares how one table is read and which domain owns its cache entries.
type Table struct {
	Name         string
	Domain       querycache.Domain
	StatsDomain  querycache.Domain
	DefaultOrder []store.Order
	Groupable    []string
}

type Resource[T any, F Filter] struct {
	table Table
	deps  Deps
}

func New[T any, F Filter](deps Deps, table Table) *Resource[T, F] {
	return &Resource[T, F]{table: table, deps: deps.withDefaults()}
}

func (r *Resource[T, F]) Table() Table { return r.table }

func (r *Resource[T, F]) List(ctx context.Context, f F) ([]T, error) {
	key, err := cacheKey("list", f)
	if err != nil {
		return nil, err
	}

	v, err := r.deps.Cache.Load(ctx, r.table.Domain, key, func(ctx context.Context) (any, error) {
		body, err := r.deps.Backend.Select(ctx, store.Query{
			Table: r.table.Name,
			Where: f.Predicates(),
			Order: r.table.DefaultOrder,
		})
		if err != nil {
			return nil, r.remoteFailure("select", err)
		}
		return decodeRows[T](body)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

func (r *Resource[T, F]) Get(ctx context.Context, id string) (*T, error) {
	v, err := r.deps.Cache.Load(ctx, r.table.Domain, "id:"+id, func(ctx context.Context) (any, error) {
		body, err := r.deps.Backend.Select(ctx, store.Query{
			Table: r.table.Name,
			Where: []store.Predicate{store.Eq("id", id)},
			Limit: 1,
		})
		if err != nil {
			return nil, r.remoteFailure("select", err)
		}
		rows, err := decodeRows[T](body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, store.ErrNotFound
		}
		return rows[0], nil
	})
	if err != nil {
		return nil, err
	}
	row := v.(T)
	return &row, nil
}

// Find reads straight from the backend, bypassing the cache. Sweeps and
// uniqueness checks use it where a stale answer is not acceptable.
func (r *Resource[T, F]) Find(ctx context.Context, where []store.Predicate, limit int) ([]T, error) {
	body, err := r.deps.Backend.Select(ctx, store.Query{
		Table: r.table.Name,
		Where: where,
		Order: r.table.DefaultOrder,
		Limit: limit,
	})
	if err != nil {
		return nil, r.remoteFailure("select", err)
	}
	return decodeRows[T](body)
}

func (r *Resource[T, F]) Exists(ctx context.Context, where ...store.Predicate) (bool, error) {
	body, err := r.deps.Backend.Select(ctx, store.Query{
		Table:   r.table.Name,
		Columns: []string{"id"},
		Where:   where,
		Limit:   1,
	})
	if err != nil {
		return false, r.remoteFailure("select", err)
	}
	rows, err := decodeRows[store.Record](body)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Create stamps id and timestamps, validates and inserts v. The stored row is
// returned.
func (r *Resource[T, F]) Create(ctx context.Context, v *T) (*T, error) {
	if d, ok := any(v).(defaulter); ok {
		d.ApplyDefaults()
	}
	if r.deps.Validate != nil {
		if err := r.deps.Validate(v); err != nil {
			return nil, err
		}
	}

	rec, err := store.ToRecord(v)
	if err != nil {
		return nil, err
	}
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = uuid.NewString()
	}
	now := r.deps.Now().UTC()
	rec["created_at"] = now
	rec["updated_at"] = now

	body, err := r.deps.Backend.Insert(ctx, r.table.Name, rec)
	if err != nil {
		return nil, r.remoteFailure("insert", err)
	}
	r.written(ctx)
	return firstRow[T](body)
}

// Update applies patch to the row with the given id. Identity columns in the
// patch are ignored.
func (r *Resource[T, F]) Update(ctx context.Context, id string, patch store.Record) (*T, error) {
	rows, err := r.UpdateMatching(ctx, []store.Predicate{store.Eq("id", id)}, patch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

// UpdateWhere patches every row matching f. An empty filter is rejected.
func (r *Resource[T, F]) UpdateWhere(ctx context.Context, f F, patch store.Record) ([]T, error) {
	return r.UpdateMatching(ctx, f.Predicates(), patch)
}

// UpdateMatching is UpdateWhere over raw predicates, for guarded writes such
// as compare-and-set on a status column.
func (r *Resource[T, F]) UpdateMatching(ctx context.Context, where []store.Predicate, patch store.Record) ([]T, error) {
	if len(where) == 0 {
		return nil, ErrUnboundedWrite
	}

	rec := make(store.Record, len(patch)+1)
	for k, v := range patch {
		if k == "id" || k == "created_at" {
			continue
		}
		rec[k] = v
	}
	rec["updated_at"] = r.deps.Now().UTC()

	body, err := r.deps.Backend.Update(ctx, r.table.Name, where, rec)
	if err != nil {
		return nil, r.remoteFailure("update", err)
	}
	rows, err := decodeRows[T](body)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		r.written(ctx)
	}
	return rows, nil
}

func (r *Resource[T, F]) Delete(ctx context.Context, id string) error {
	body, err := r.deps.Backend.Delete(ctx, r.table.Name, []store.Predicate{store.Eq("id", id)})
	if err != nil {
		return r.remoteFailure("delete", err)
	}
	rows, err := decodeRows[store.Record](body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	r.written(ctx)
	return nil
}

// CountBy counts rows matching f grouped by column.
func (r *Resource[T, F]) CountBy(ctx context.Context, column string, f F) ([]store.Bucket, error) {
	return r.aggregate(ctx, store.AggregateSpec{GroupBy: column, Where: f.Predicates()}, f)
}

// SumBy sums sumColumn over rows matching f grouped by groupColumn.
func (r *Resource[T, F]) SumBy(ctx context.Context, groupColumn, sumColumn string, f F) ([]store.Bucket, error) {
	return r.aggregate(ctx, store.AggregateSpec{GroupBy: groupColumn, Sum: sumColumn, Where: f.Predicates()}, f)
}

func (r *Resource[T, F]) aggregate(ctx context.Context, spec store.AggregateSpec, f F) ([]store.Bucket, error) {
	if !r.groupable(spec.GroupBy) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotGroupable, r.table.Name, spec.GroupBy)
	}

	// Stats domains are shared between tables, so the table is part of the key.
	key, err := cacheKey("agg:"+r.table.Name+":"+spec.GroupBy+":"+spec.Sum, f)
	if err != nil {
		return nil, err
	}

	v, err := r.deps.Cache.Load(ctx, r.statsDomain(), key, func(ctx context.Context) (any, error) {
		buckets, err := r.deps.Backend.Aggregate(ctx, r.table.Name, spec)
		if err != nil {
			return nil, r.remoteFailure("aggregate", err)
		}
		return buckets, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]store.Bucket), nil
}

func (r *Resource[T, F]) groupable(column string) bool {
	for _, c := range r.table.Groupable {
		if c == column {
			return true
		}
	}
	return false
}

func (r *Resource[T, F]) statsDomain() querycache.Domain {
	if r.table.StatsDomain != "" {
		return r.table.StatsDomain
	}
	return r.table.Domain
}

func (r *Resource[T, F]) written(ctx context.Context) {
	invalidate(ctx, r.deps, r.table.Domain)
}

func (r *Resource[T, F]) remoteFailure(op string, err error) error {
	return logRemote(r.deps.Logger, op, r.table.Name, err)
}

func invalidate(ctx context.Context, deps Deps, d querycache.Domain) {
	domains := querycache.Dependents(d)
	deps.Cache.Invalidate(domains...)
	if deps.Notifier == nil {
		return
	}
	if err := deps.Notifier.Publish(ctx, domains); err != nil {
		deps.Logger.WithError(err).WithField("domain", d).Warn("failed to publish cache invalidation")
	}
}

func logRemote(log logrus.FieldLogger, op, table string, err error) error {
	var remote *store.RemoteError
	if !errors.As(err, &remote) {
		err = &store.RemoteError{Op: op, Table: table, Err: err}
	}
	log.WithFields(logrus.Fields{"op": op, "table": table}).WithError(err).Error("remote call failed")
	return err
}

func cacheKey(prefix string, f any) (string, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return prefix + ":" + string(body), nil
}

func decodeRows[T any](body []byte) ([]T, error) {
	rows := []T{}
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

func firstRow[T any](body []byte) (*T, error) {
	rows, err := decodeRows[T](body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}
