package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func jsonRows(payload string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"coalesce"}).AddRow([]byte(payload))
}

func TestStore_Select(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`WITH r AS (SELECT * FROM "candidates" WHERE "status" = $1 AND ("full_name" ILIKE $2 OR "email" ILIKE $2) ` +
			`ORDER BY "created_at" DESC NULLS LAST LIMIT 5) SELECT coalesce(json_agg(r), '[]'::json) FROM r`)).
		WithArgs("new", `%100\%%`).
		WillReturnRows(jsonRows(`[{"id":"c1"}]`))

	body, err := s.Select(context.Background(), store.Query{
		Table: "candidates",
		Where: []store.Predicate{
			store.Eq("status", "new"),
			store.Search("100%", "full_name", "email"),
		},
		Order: []store.Order{{Column: "created_at", Desc: true}},
		Limit: 5,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"c1"}]`, string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SelectNullsAndLists(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT "id" FROM "blog_generation_queue" WHERE "status" = ANY($1) AND "lease_expires_at" IS NULL AND "updated_at" < $2 ORDER BY "updated_at" ASC NULLS FIRST`)).
		WithArgs(sqlmock.AnyArg(), cutoff).
		WillReturnRows(jsonRows(`[]`))

	body, err := s.Select(context.Background(), store.Query{
		Table:   "blog_generation_queue",
		Columns: []string{"id"},
		Where: []store.Predicate{
			store.In("status", []string{"generating", "pending"}),
			store.IsNull("lease_expires_at"),
			store.Lt("updated_at", &cutoff),
		},
		Order: []store.Order{{Column: "updated_at"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`WITH r AS (INSERT INTO "blog_automation_settings" ("id", "languages", "payload") VALUES ($1, $2, $3) RETURNING *)`)).
		WithArgs(float64(1), sqlmock.AnyArg(), `{"tone":"formal"}`).
		WillReturnRows(jsonRows(`[{"id":1}]`))

	body, err := s.Insert(context.Background(), "blog_automation_settings", store.Record{
		"id":        float64(1),
		"languages": []any{"es", "en"},
		"payload":   map[string]any{"tone": "formal"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Upsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "news_automation_settings" ("enabled", "id") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "enabled" = EXCLUDED."enabled" RETURNING *`)).
		WithArgs(true, 1).
		WillReturnRows(jsonRows(`[{"id":1,"enabled":true}]`))

	_, err := s.Upsert(context.Background(), "news_automation_settings", store.Record{"id": 1, "enabled": true}, "id")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE "contact_submissions" SET "notes" = $1, "status" = $2 WHERE "id" = $3 RETURNING *`)).
		WithArgs(nil, "contacted", "l1").
		WillReturnRows(jsonRows(`[{"id":"l1","status":"contacted"}]`))

	body, err := s.Update(context.Background(), "contact_submissions",
		[]store.Predicate{store.Eq("id", "l1")},
		store.Record{"status": "contacted", "notes": nil})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"l1","status":"contacted"}]`, string(body))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.Update(context.Background(), "contact_submissions", nil, store.Record{})
	var remote *store.RemoteError
	assert.True(t, errors.As(err, &remote))
}

func TestStore_Delete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM "presentations" WHERE "id" = $1 RETURNING *`)).
		WithArgs("p1").
		WillReturnRows(jsonRows(`[]`))

	body, err := s.Delete(context.Background(), "presentations", []store.Predicate{store.Eq("id", "p1")})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Aggregate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT coalesce("status"::text, '') AS key, count(*) AS count, coalesce(sum("net"), 0)::float8 AS sum FROM "payroll_entries" WHERE "period" = $1 GROUP BY 1 ORDER BY 1`)).
		WithArgs("2025-05").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count", "sum"}).
			AddRow("approved", int64(2), 3100.5).
			AddRow("paid", int64(5), 9000.0))

	buckets, err := s.Aggregate(context.Background(), "payroll_entries", store.AggregateSpec{
		GroupBy: "status",
		Sum:     "net",
		Where:   []store.Predicate{store.Eq("period", "2025-05")},
	})
	require.NoError(t, err)
	assert.Equal(t, []store.Bucket{
		{Key: "approved", Count: 2, Sum: 3100.5},
		{Key: "paid", Count: 5, Sum: 9000},
	}, buckets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Call(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT to_json("check_rate_limit"("p_action" => $1, "p_identifier" => $2, "p_max_requests" => $3, "p_window_minutes" => $4))`)).
		WithArgs("contact_form", "ana@example.com", 10, 60).
		WillReturnRows(sqlmock.NewRows([]string{"to_json"}).AddRow([]byte("true")))

	body, err := s.Call(context.Background(), "check_rate_limit", store.Record{
		"p_identifier":     "ana@example.com",
		"p_action":         "contact_form",
		"p_max_requests":   10,
		"p_window_minutes": 60,
	})
	require.NoError(t, err)
	assert.Equal(t, "true", string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ErrorsAreRemote(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "employees"`).WillReturnError(errors.New("connection reset"))

	_, err := s.Select(context.Background(), store.Query{Table: "employees"})
	require.Error(t, err)

	var remote *store.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "select", remote.Op)
	assert.Equal(t, "employees", remote.Table)

	_, err = s.Select(context.Background(), store.Query{
		Table: "employees",
		Where: []store.Predicate{{Op: "between", Column: "salary"}},
	})
	assert.True(t, errors.As(err, &remote))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\o/`, escapeLike(`50% off_now \o/`))
}
