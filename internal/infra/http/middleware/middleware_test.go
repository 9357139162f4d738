package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"valid token", "s3cret", "Bearer s3cret", http.StatusNoContent},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"basic scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"unconfigured token locks the api", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/candidates", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			BearerAuth(tt.token)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"UNAUTHORIZED","message":"missing or invalid bearer token"}`, rec.Body.String())
			}
		})
	}
}

func throttledCall(h http.Handler, remote, xff string) int {
	req := httptest.NewRequest(http.MethodPost, "/public/contact", nil)
	req.RemoteAddr = remote + ":5555"
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestThrottle(t *testing.T) {
	h := NewThrottler(1, 2, nil).Handler(ok)

	assert.Equal(t, http.StatusNoContent, throttledCall(h, "10.0.0.1", ""))
	assert.Equal(t, http.StatusNoContent, throttledCall(h, "10.0.0.1", ""))

	req := httptest.NewRequest(http.MethodPost, "/public/contact", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rejected := httptest.NewRecorder()
	h.ServeHTTP(rejected, req)
	assert.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.Equal(t, "1", rejected.Header().Get("Retry-After"))
	assert.Contains(t, rejected.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusNoContent, throttledCall(h, "10.0.0.2", ""), "buckets are per IP")
}

func TestThrottleIgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	h := NewThrottler(1, 1, nil).Handler(ok)

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		codes[throttledCall(h, "203.0.113.7", fmt.Sprintf("198.51.100.%d", i))]++
	}
	assert.Equal(t, map[int]int{http.StatusNoContent: 1, http.StatusTooManyRequests: 19}, codes)
}

func TestThrottleBehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	h := NewThrottler(1, 1, trusted).Handler(ok)

	assert.Equal(t, http.StatusNoContent, throttledCall(h, "10.1.1.1", "198.51.100.1"))
	assert.Equal(t, http.StatusNoContent, throttledCall(h, "10.1.1.1", "198.51.100.2"), "clients behind the proxy get their own bucket")
	assert.Equal(t, http.StatusTooManyRequests, throttledCall(h, "10.1.1.1", "198.51.100.1"))

	// A forged left-most hop does not escape the bucket of the hop the proxy saw.
	assert.Equal(t, http.StatusTooManyRequests, throttledCall(h, "10.1.1.1", "192.0.2.99, 198.51.100.2"))
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted peer", "10.0.0.5:1234", "198.51.100.1", "198.51.100.1"},
		{"chain of proxies", "10.0.0.5:1234", "198.51.100.1, 192.168.1.1, 10.0.0.9", "198.51.100.1"},
		{"trusted peer without header", "10.0.0.5:1234", "", "10.0.0.5"},
		{"garbage hop", "10.0.0.5:1234", "not-an-ip", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(req, trusted))
		})
	}

	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestThrottlePrunesIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottler(1, 1, nil)
	th.now = func() time.Time { return now }
	h := th.Handler(ok)

	throttledCall(h, "203.0.113.1", "")
	throttledCall(h, "203.0.113.2", "")
	require.Equal(t, 2, th.Len())

	now = now.Add(limiterTTL / 2)
	throttledCall(h, "203.0.113.2", "")
	now = now.Add(limiterTTL/2 + time.Second)
	th.prune()
	assert.Equal(t, 1, th.Len())
}

func TestThrottleDisabled(t *testing.T) {
	h := NewThrottler(0, 0, nil).Handler(ok)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	var unset *Throttler
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, throttledCall(unset.Handler(ok), "203.0.113.1", ""))
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var seen string
	h := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin/candidates/missing", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "req-123", entry.Data["request_id"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])

	t.Run("mints an id when none is sent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/admin/candidates/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/candidates/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/admin/candidates/{id}", "200")))
}
