package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type captured struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func newTestBackend(t *testing.T, status int, response string) (*Backend, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.Query()
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend(Config{URL: srv.URL, ServiceKey: "service-key"})
	require.NoError(t, err)
	return b, got
}

func TestNewBackend_RequiresCredentials(t *testing.T) {
	_, err := NewBackend(Config{URL: "https://example.supabase.co"})
	assert.Error(t, err)
}

func TestBackend_Select(t *testing.T) {
	b, got := newTestBackend(t, http.StatusOK, `[{"id":"a1"}]`)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	where := []store.Predicate{
		store.Eq("status", "scheduled"),
		store.Search("tax", "title", "excerpt"),
	}
	where = append(where, store.Range("scheduled_for", &from, &to)...)

	body, err := b.Select(context.Background(), store.Query{
		Table: "blog_posts",
		Where: where,
		Order: []store.Order{{Column: "scheduled_for"}, {Column: "created_at", Desc: true}},
		Limit: 20,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a1"}]`, string(body))

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/rest/v1/blog_posts", got.path)
	assert.Equal(t, "service-key", got.header.Get("apikey"))
	assert.Equal(t, "Bearer service-key", got.header.Get("Authorization"))

	assert.Equal(t, "*", got.query.Get("select"))
	assert.Equal(t, "eq.scheduled", got.query.Get("status"))
	assert.Equal(t, "gte.2025-06-01T00:00:00Z", got.query.Get("scheduled_for"))
	assert.Equal(t,
		`(or(title.ilike."*tax*",excerpt.ilike."*tax*"),scheduled_for.lte."2025-06-30T00:00:00Z")`,
		got.query.Get("and"))
	assert.Equal(t, "scheduled_for.asc.nullsfirst,created_at.desc.nullslast", got.query.Get("order"))
	assert.Equal(t, "20", got.query.Get("limit"))
}

func TestBackend_NullAndListFilters(t *testing.T) {
	b, got := newTestBackend(t, http.StatusOK, `[]`)

	_, err := b.Select(context.Background(), store.Query{
		Table:   "news_generation_queue",
		Columns: []string{"id", "status"},
		Where: []store.Predicate{
			store.IsNull("lease_expires_at"),
			store.NotNull("error_message"),
			store.In("status", []string{"pending", "failed"}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,status", got.query.Get("select"))
	assert.Equal(t, "is.null", got.query.Get("lease_expires_at"))
	assert.Equal(t, "not.is.null", got.query.Get("error_message"))
	assert.Equal(t, "in.(pending,failed)", got.query.Get("status"))
	assert.Empty(t, got.query.Get("and"))
}

func TestBackend_Writes(t *testing.T) {
	t.Run("insert returns representation", func(t *testing.T) {
		b, got := newTestBackend(t, http.StatusCreated, `[{"id":"l1"}]`)

		_, err := b.Insert(context.Background(), "contact_submissions", store.Record{"id": "l1", "email": "ana@example.com"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "return=representation", got.header.Get("Prefer"))
		assert.JSONEq(t, `{"id":"l1","email":"ana@example.com"}`, string(got.body))
	})

	t.Run("upsert merges on conflict", func(t *testing.T) {
		b, got := newTestBackend(t, http.StatusOK, `[{"id":1}]`)

		_, err := b.Upsert(context.Background(), "blog_automation_settings", store.Record{"id": 1, "enabled": true}, "id")
		require.NoError(t, err)
		assert.Equal(t, "id", got.query.Get("on_conflict"))
		assert.Contains(t, got.header.Get("Prefer"), "resolution=merge-duplicates")
	})

	t.Run("update is filtered", func(t *testing.T) {
		b, got := newTestBackend(t, http.StatusOK, `[]`)

		body, err := b.Update(context.Background(), "blog_generation_queue",
			[]store.Predicate{store.Eq("id", "q1"), store.Eq("status", "generating")},
			store.Record{"status": "completed"})
		require.NoError(t, err)
		assert.Equal(t, "[]", string(body))
		assert.Equal(t, http.MethodPatch, got.method)
		assert.Equal(t, "eq.q1", got.query.Get("id"))
		assert.Equal(t, "eq.generating", got.query.Get("status"))
	})

	t.Run("delete", func(t *testing.T) {
		b, got := newTestBackend(t, http.StatusOK, `[{"id":"p1"}]`)

		_, err := b.Delete(context.Background(), "presentations", []store.Predicate{store.Eq("id", "p1")})
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, got.method)
		assert.Equal(t, "eq.p1", got.query.Get("id"))
	})
}

func TestBackend_Aggregate(t *testing.T) {
	b, got := newTestBackend(t, http.StatusOK,
		`[{"status":"paid","net":1000.5},{"status":"approved","net":200},{"status":"paid","net":"99.5"},{"status":null,"net":null}]`)

	buckets, err := b.Aggregate(context.Background(), "payroll_entries", store.AggregateSpec{GroupBy: "status", Sum: "net"})
	require.NoError(t, err)
	assert.Equal(t, "status,net", got.query.Get("select"))
	assert.Equal(t, []store.Bucket{
		{Key: "", Count: 1},
		{Key: "approved", Count: 1, Sum: 200},
		{Key: "paid", Count: 2, Sum: 1100},
	}, buckets)
}

// newPagedBackend serves rows in pages of at most maxRows, the way a
// PostgREST project with a max-rows setting does.
func newPagedBackend(t *testing.T, rows []string, maxRows int) (*Backend, *[]url.Values, *[]http.Header) {
	t.Helper()
	var queries []url.Values
	var headers []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q)
		headers = append(headers, r.Header.Clone())

		offset, _ := strconv.Atoi(q.Get("offset"))
		end := min(offset+maxRows, len(rows))
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
			end = min(end, offset+limit)
		}
		total := "*"
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			total = strconv.Itoa(len(rows))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%s", offset, end-1, total))
		_, _ = w.Write([]byte("[" + strings.Join(rows[offset:end], ",") + "]"))
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend(Config{URL: srv.URL, ServiceKey: "service-key"})
	require.NoError(t, err)
	return b, &queries, &headers
}

func TestBackend_SelectPagesPastMaxRows(t *testing.T) {
	rows := []string{
		`{"id":"a","status":"new"}`,
		`{"id":"b","status":"new"}`,
		`{"id":"c","status":"resolved"}`,
		`{"id":"d","status":"new"}`,
		`{"id":"e","status":"contacted"}`,
	}

	t.Run("full scan reads every page", func(t *testing.T) {
		b, queries, headers := newPagedBackend(t, rows, 2)

		body, err := b.Select(context.Background(), store.Query{Table: "contact_submissions"})
		require.NoError(t, err)

		var got []map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		require.Len(t, got, 5)
		assert.Equal(t, "e", got[4]["id"])

		require.Len(t, *queries, 3)
		assert.Contains(t, (*headers)[0].Get("Prefer"), "count=exact")
		assert.Equal(t, "id.asc.nullslast", (*queries)[0].Get("order"))
		assert.Equal(t, "2", (*queries)[1].Get("offset"))
		assert.Equal(t, "4", (*queries)[2].Get("offset"))
		assert.Equal(t, "2", (*queries)[2].Get("limit"))
	})

	t.Run("aggregate counts rows beyond the cap", func(t *testing.T) {
		b, _, _ := newPagedBackend(t, rows, 2)

		buckets, err := b.Aggregate(context.Background(), "contact_submissions", store.AggregateSpec{GroupBy: "status"})
		require.NoError(t, err)
		assert.Equal(t, []store.Bucket{
			{Key: "contacted", Count: 1},
			{Key: "new", Count: 3},
			{Key: "resolved", Count: 1},
		}, buckets)
	})

	t.Run("limited select is a single request", func(t *testing.T) {
		b, queries, headers := newPagedBackend(t, rows, 2)

		body, err := b.Select(context.Background(), store.Query{Table: "contact_submissions", Limit: 2})
		require.NoError(t, err)
		assert.JSONEq(t, "["+rows[0]+","+rows[1]+"]", string(body))
		require.Len(t, *queries, 1)
		assert.NotContains(t, (*headers)[0].Get("Prefer"), "count=exact")
	})

	t.Run("caller order on id is not repeated", func(t *testing.T) {
		b, queries, _ := newPagedBackend(t, rows, 10)

		_, err := b.Select(context.Background(), store.Query{
			Table: "contact_submissions",
			Order: []store.Order{{Column: "id", Desc: true}},
		})
		require.NoError(t, err)
		assert.Equal(t, "id.desc.nullslast", (*queries)[0].Get("order"))
	})
}

func TestBackend_Call(t *testing.T) {
	b, got := newTestBackend(t, http.StatusOK, `false`)

	body, err := b.Call(context.Background(), "check_rate_limit", store.Record{"p_identifier": "ana@example.com", "p_max_requests": 10})
	require.NoError(t, err)
	assert.Equal(t, "false", string(body))
	assert.Equal(t, "/rest/v1/rpc/check_rate_limit", got.path)

	var args map[string]any
	require.NoError(t, json.Unmarshal(got.body, &args))
	assert.Equal(t, "ana@example.com", args["p_identifier"])
}

func TestBackend_Errors(t *testing.T) {
	t.Run("http error becomes remote error", func(t *testing.T) {
		b, _ := newTestBackend(t, http.StatusConflict, `{"code":"23505","message":"duplicate key value"}`)

		_, err := b.Insert(context.Background(), "whistleblower_reports", store.Record{"tracking_code": "WB-2025-AAAA"})
		var remote *store.RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, "insert", remote.Op)
		assert.Contains(t, err.Error(), "duplicate key value")
	})

	t.Run("rpc error body", func(t *testing.T) {
		b, _ := newTestBackend(t, http.StatusNotFound, `{"code":"PGRST202","message":"Could not find the function"}`)

		_, err := b.Call(context.Background(), "check_rate_limit", store.Record{})
		assert.Error(t, err)
	})

	t.Run("cancelled context never leaves the process", func(t *testing.T) {
		b, got := newTestBackend(t, http.StatusOK, `[]`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := b.Select(ctx, store.Query{Table: "employees"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, got.method)
	})
}

func TestBackend_Ping(t *testing.T) {
	b, _ := newTestBackend(t, http.StatusOK, `{}`)
	assert.NoError(t, b.Ping(context.Background()))
}
