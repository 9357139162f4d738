// Package postgrest runs accessor operations against a hosted PostgREST
// endpoint (Supabase /rest/v1).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

const returnRows = "representation"

type Config struct {
	URL        string
	ServiceKey string
	Schema     string
}

// Backend implements store.Backend. The client library keeps request errors
// on the client itself, so every operation builds a fresh client.
type Backend struct {
	baseURL string
	schema  string
	headers map[string]string
}

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("supabase url and service key are required")
	}

	b := &Backend{
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		schema:  cfg.Schema,
		headers: map[string]string{
			"apikey":        cfg.ServiceKey,
			"Authorization": fmt.Sprintf("Bearer %s", cfg.ServiceKey),
		},
	}
	if c := b.client(); c.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize postgrest client: %w", c.ClientError)
	}
	return b, nil
}

func (b *Backend) client() *postgrest.Client {
	return postgrest.NewClient(b.baseURL, b.schema, b.headers)
}

// Ping reports whether the REST endpoint answers its root document.
func (b *Backend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := b.client()
	if !c.Ping() {
		return fmt.Errorf("postgrest ping failed: %w", c.ClientError)
	}
	return nil
}

func (b *Backend) Select(ctx context.Context, q store.Query) ([]byte, error) {
	if q.Limit <= 0 {
		return b.run(ctx, "select", q.Table, func(*postgrest.Client) ([]byte, error) {
			return b.selectAll(ctx, q)
		})
	}
	return b.run(ctx, "select", q.Table, func(c *postgrest.Client) ([]byte, error) {
		f, err := filtered(c, q, "")
		if err != nil {
			return nil, err
		}
		body, _, err := f.Limit(q.Limit, "").Execute()
		return body, err
	})
}

// selectAll reads every matching row. The server caps each response at its
// max-rows setting, so the first reply asks for an exact count and the rest
// is fetched in pages of whatever size the server returned. Pages are
// ordered by id after the caller's order so offsets stay stable.
func (b *Backend) selectAll(ctx context.Context, q store.Query) ([]byte, error) {
	f, err := filtered(b.client(), q, "exact")
	if err != nil {
		return nil, err
	}
	body, total, err := byID(f, q).Execute()
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return body, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	page := len(rows)
	if page == 0 || int64(page) >= total {
		return body, nil
	}

	for int64(len(rows)) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := filtered(b.client(), q, "")
		if err != nil {
			return nil, err
		}
		offset := len(rows)
		body, _, err := byID(f, q).Range(offset, offset+page-1, "").Execute()
		if err != nil {
			return nil, err
		}
		var next []json.RawMessage
		if err := json.Unmarshal(body, &next); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		if len(next) == 0 {
			break
		}
		rows = append(rows, next...)
	}
	return json.Marshal(rows)
}

func byID(f *postgrest.FilterBuilder, q store.Query) *postgrest.FilterBuilder {
	for _, o := range q.Order {
		if o.Column == "id" {
			return f
		}
	}
	return f.Order("id", &postgrest.OrderOpts{Ascending: true})
}

func filtered(c *postgrest.Client, q store.Query, count string) (*postgrest.FilterBuilder, error) {
	f, err := applyFilters(c.From(q.Table).Select(selectList(q.Columns), count, false), q.Where)
	if err != nil {
		return nil, err
	}
	for _, o := range q.Order {
		f = f.Order(o.Column, &postgrest.OrderOpts{Ascending: !o.Desc, NullsFirst: !o.Desc})
	}
	return f, nil
}

func (b *Backend) Insert(ctx context.Context, table string, rec store.Record) ([]byte, error) {
	return b.run(ctx, "insert", table, func(c *postgrest.Client) ([]byte, error) {
		body, _, err := c.From(table).Insert(rec, false, "", returnRows, "").Execute()
		return body, err
	})
}

func (b *Backend) Upsert(ctx context.Context, table string, rec store.Record, onConflict string) ([]byte, error) {
	return b.run(ctx, "upsert", table, func(c *postgrest.Client) ([]byte, error) {
		body, _, err := c.From(table).Upsert(rec, onConflict, returnRows, "").Execute()
		return body, err
	})
}

func (b *Backend) Update(ctx context.Context, table string, where []store.Predicate, patch store.Record) ([]byte, error) {
	return b.run(ctx, "update", table, func(c *postgrest.Client) ([]byte, error) {
		f, err := applyFilters(c.From(table).Update(patch, returnRows, ""), where)
		if err != nil {
			return nil, err
		}
		body, _, err := f.Execute()
		return body, err
	})
}

func (b *Backend) Delete(ctx context.Context, table string, where []store.Predicate) ([]byte, error) {
	return b.run(ctx, "delete", table, func(c *postgrest.Client) ([]byte, error) {
		f, err := applyFilters(c.From(table).Delete(returnRows, ""), where)
		if err != nil {
			return nil, err
		}
		body, _, err := f.Execute()
		return body, err
	})
}

// Aggregate fetches only the grouped and summed columns, paging past
// max-rows, and reduces them in one pass. Hosted projects ship with
// PostgREST aggregates disabled.
func (b *Backend) Aggregate(ctx context.Context, table string, spec store.AggregateSpec) ([]store.Bucket, error) {
	columns := []string{spec.GroupBy}
	if spec.Sum != "" && spec.Sum != spec.GroupBy {
		columns = append(columns, spec.Sum)
	}

	body, err := b.Select(ctx, store.Query{Table: table, Columns: columns, Where: spec.Where})
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, &store.RemoteError{Op: "aggregate", Table: table, Err: fmt.Errorf("decode rows: %w", err)}
	}

	index := make(map[string]int)
	buckets := []store.Bucket{}
	for _, row := range rows {
		key := ""
		if v := row[spec.GroupBy]; v != nil {
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
			buckets[i].Sum += number(row[spec.Sum])
		}
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets, nil
}

func (b *Backend) Call(ctx context.Context, fn string, args store.Record) ([]byte, error) {
	return b.run(ctx, "rpc", fn, func(c *postgrest.Client) ([]byte, error) {
		result := c.Rpc(fn, "", args)
		if c.ClientError != nil {
			return nil, c.ClientError
		}

		var failure postgrest.ExecuteError
		if json.Unmarshal([]byte(result), &failure) == nil && failure.Code != "" && failure.Message != "" {
			return nil, fmt.Errorf("(%s) %s", failure.Code, failure.Message)
		}
		return []byte(result), nil
	})
}

func (b *Backend) run(ctx context.Context, op, table string, fn func(*postgrest.Client) ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.RemoteError{Op: op, Table: table, Err: err}
	}

	body, err := fn(b.client())
	if err != nil {
		return nil, &store.RemoteError{Op: op, Table: table, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("[]"), nil
	}
	return body, nil
}

func selectList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(columns, ",")
}

func number(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case float64:
		return n
	}
	return 0
}
