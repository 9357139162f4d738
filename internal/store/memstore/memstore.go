// Package memstore is an in-process store.Backend. It evaluates the full
// predicate model against JSON rows and backs local runs and package tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type Func func(args store.Record) (any, error)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]store.Record
	funcs  map[string]Func
}

func New() *Store {
	return &Store{
		tables: make(map[string][]store.Record),
		funcs:  make(map[string]Func),
	}
}

// RegisterFunc makes fn callable through Call, standing in for a stored procedure.
func (s *Store) RegisterFunc(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[name] = fn
}

// Seed inserts rows verbatim, without stamping ids or timestamps.
func (s *Store) Seed(table string, rows ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		rec, err := normalize(row)
		if err != nil {
			return err
		}
		s.tables[table] = append(s.tables[table], rec)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Record
	for _, row := range s.tables[q.Table] {
		if matchAll(row, q.Where) {
			out = append(out, project(row, q.Columns))
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return encode(out)
}

func (s *Store) Insert(ctx context.Context, table string, rec store.Record) ([]byte, error) {
	row, err := normalize(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], row)
	return encode([]store.Record{row})
}

func (s *Store) Upsert(ctx context.Context, table string, rec store.Record, onConflict string) ([]byte, error) {
	row, err := normalize(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tables[table] {
		if compare(existing[onConflict], row[onConflict]) == 0 {
			for k, v := range row {
				existing[k] = v
			}
			s.tables[table][i] = existing
			return encode([]store.Record{existing})
		}
	}
	s.tables[table] = append(s.tables[table], row)
	return encode([]store.Record{row})
}

func (s *Store) Update(ctx context.Context, table string, where []store.Predicate, patch store.Record) ([]byte, error) {
	values, err := normalize(patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []store.Record
	for _, row := range s.tables[table] {
		if !matchAll(row, where) {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		updated = append(updated, row)
	}
	return encode(updated)
}

func (s *Store) Delete(ctx context.Context, table string, where []store.Predicate) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept, deleted []store.Record
	for _, row := range s.tables[table] {
		if matchAll(row, where) {
			deleted = append(deleted, row)
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return encode(deleted)
}

func (s *Store) Aggregate(ctx context.Context, table string, spec store.AggregateSpec) ([]store.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	var buckets []store.Bucket
	for _, row := range s.tables[table] {
		if !matchAll(row, spec.Where) {
			continue
		}
		key := ""
		if v, ok := row[spec.GroupBy]; ok && v != nil {
			key = fmt.Sprint(v)
		}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, store.Bucket{Key: key})
		}
		buckets[i].Count++
		if spec.Sum != "" {
			if f, ok := toFloat(row[spec.Sum]); ok {
				buckets[i].Sum += f
			}
		}
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets, nil
}

func (s *Store) Call(ctx context.Context, fn string, args store.Record) ([]byte, error) {
	s.mu.RLock()
	f, ok := s.funcs[fn]
	s.mu.RUnlock()
	if !ok {
		return nil, &store.RemoteError{Op: "rpc", Table: fn, Err: fmt.Errorf("function not found")}
	}

	result, err := f(args)
	if err != nil {
		return nil, &store.RemoteError{Op: "rpc", Table: fn, Err: err}
	}
	return json.Marshal(result)
}

// normalize round-trips through JSON so stored rows hold the same value kinds
// a remote store would hand back.
func normalize(v any) (store.Record, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstore: encode row: %w", err)
	}
	var rec store.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("memstore: decode row: %w", err)
	}
	return rec, nil
}

func encode(rows []store.Record) ([]byte, error) {
	if rows == nil {
		rows = []store.Record{}
	}
	return json.Marshal(rows)
}

func project(row store.Record, columns []string) store.Record {
	if len(columns) == 0 {
		out := make(store.Record, len(row))
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	out := make(store.Record, len(columns))
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}

func matchAll(row store.Record, preds []store.Predicate) bool {
	for _, p := range preds {
		if !match(row, p) {
			return false
		}
	}
	return true
}

func match(row store.Record, p store.Predicate) bool {
	v := row[p.Column]
	switch p.Op {
	case store.OpEq:
		return v != nil && compare(v, p.Value) == 0
	case store.OpNeq:
		return v != nil && compare(v, p.Value) != 0
	case store.OpLt:
		return v != nil && compare(v, p.Value) < 0
	case store.OpLte:
		return v != nil && compare(v, p.Value) <= 0
	case store.OpGt:
		return v != nil && compare(v, p.Value) > 0
	case store.OpGte:
		return v != nil && compare(v, p.Value) >= 0
	case store.OpIsNull:
		return v == nil
	case store.OpNotNull:
		return v != nil
	case store.OpIn:
		values, _ := p.Value.([]string)
		for _, want := range values {
			if v != nil && compare(v, want) == 0 {
				return true
			}
		}
		return false
	case store.OpSearch:
		term := strings.ToLower(store.FormatValue(p.Value))
		for _, c := range p.Columns {
			if s, ok := row[c].(string); ok && strings.Contains(strings.ToLower(s), term) {
				return true
			}
		}
		return false
	}
	return false
}

// compare orders two values: timestamps chronologically, numbers numerically,
// everything else by its string form. nil sorts first.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(store.FormatValue(a), store.FormatValue(b))
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
