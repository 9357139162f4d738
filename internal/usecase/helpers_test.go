package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/accessor"
	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
	"github.com/xavierca1/firm-backoffice/internal/store"
	"github.com/xavierca1/firm-backoffice/internal/store/memstore"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time         { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCatalog(t *testing.T, backend store.Backend, now func() time.Time) (*catalog.Catalog, *querycache.Cache) {
	t.Helper()
	cache := querycache.New(time.Minute, querycache.WithClock(now))
	return catalog.New(accessor.Deps{
		Backend:  backend,
		Cache:    cache,
		Validate: Validate,
		Now:      now,
	}), cache
}

// failingInserts wraps a backend and fails inserts into one table.
type failingInserts struct {
	store.Backend
	table string
}

func (f *failingInserts) Insert(ctx context.Context, table string, rec store.Record) ([]byte, error) {
	if table == f.table {
		return nil, errors.New("insert rejected")
	}
	return f.Backend.Insert(ctx, table, rec)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, identifier, action string) (bool, error) {
	args := m.Called(ctx, identifier, action)
	return args.Bool(0), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendContactNotification(ctx context.Context, kind entity.LeadKind, lead entity.Lead) error {
	args := m.Called(ctx, kind, lead)
	return args.Error(0)
}

func (m *MockMailer) SendWhistleblowerReceipt(ctx context.Context, to, trackingCode string) error {
	args := m.Called(ctx, to, trackingCode)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RateLimited(action string, failClosed bool) {
	m.Called(action, failClosed)
}

func (m *MockRecorder) StuckReset(queue entity.QueueKind, n int) {
	m.Called(queue, n)
}

func (m *MockRecorder) LeasesReclaimed(queue entity.QueueKind, n int) {
	m.Called(queue, n)
}

func seed(t *testing.T, mem *memstore.Store, table string, rows ...any) {
	t.Helper()
	require.NoError(t, mem.Seed(table, rows...))
}
