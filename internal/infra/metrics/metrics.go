package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_requests_total",
			Help: "Cached reads by domain and result",
		},
		[]string{"domain", "result"},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_invalidations_total",
			Help: "Domain invalidations",
		},
		[]string{"domain"},
	)

	cacheEntriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_entries_dropped_total",
			Help: "Cache entries dropped by invalidation",
		},
		[]string{"domain"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"action", "fail_closed"},
	)

	stuckReset = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_queue_stuck_reset_total",
			Help: "Queue items reset from generating to pending by the stuck sweep",
		},
		[]string{"queue"},
	)

	leasesReclaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_queue_leases_reclaimed_total",
			Help: "Queue items whose lease expired and were returned to pending",
		},
		[]string{"queue"},
	)

	remoteInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_messages_total",
			Help: "Invalidation messages exchanged with other instances",
		},
		[]string{"direction"},
	)
)

// Recorder feeds the business and cache counters. The zero value is ready to use.
type Recorder struct{}

func (Recorder) Hit(d querycache.Domain) {
	cacheRequests.WithLabelValues(string(d), "hit").Inc()
}

func (Recorder) Miss(d querycache.Domain) {
	cacheRequests.WithLabelValues(string(d), "miss").Inc()
}

func (Recorder) Invalidated(d querycache.Domain, entries int) {
	cacheInvalidations.WithLabelValues(string(d)).Inc()
	cacheEntriesDropped.WithLabelValues(string(d)).Add(float64(entries))
}

func (Recorder) RateLimited(action string, failClosed bool) {
	rateLimited.WithLabelValues(action, strconv.FormatBool(failClosed)).Inc()
}

func (Recorder) StuckReset(queue entity.QueueKind, n int) {
	stuckReset.WithLabelValues(string(queue)).Add(float64(n))
}

func (Recorder) LeasesReclaimed(queue entity.QueueKind, n int) {
	leasesReclaimed.WithLabelValues(string(queue)).Add(float64(n))
}

func RecordInvalidationMessage(direction string) {
	remoteInvalidations.WithLabelValues(direction).Inc()
}
