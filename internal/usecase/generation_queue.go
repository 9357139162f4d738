package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

const (
	DefaultLeaseDuration = 10 * time.Minute

	StuckResetMessage   = "Reset after being stuck in generating for more than 30 minutes"
	LeaseExpiredMessage = "Reclaimed after the worker lease expired"

	claimCandidates = 5
)

var ErrQueueEmpty = errors.New("no pending items")

type QueueDiagnostics struct {
	Queue          entity.QueueKind           `json:"queue"`
	Counts         map[entity.QueueStatus]int `json:"counts"`
	Total          int                        `json:"total"`
	Stuck          []entity.QueueItem         `json:"stuck"`
	StuckThreshold string                     `json:"stuck_threshold"`
	CheckedAt      time.Time                  `json:"checked_at"`
}

type EnqueueInput struct {
	Topic    string          `json:"topic"`
	Language string          `json:"language,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// GenerationQueue operates one blog or news generation queue. Workers hold a
// lease while generating; items without a lease fall back to the updated_at
// threshold.
type GenerationQueue struct {
	kind     entity.QueueKind
	items    *catalog.QueueResource
	lease    time.Duration
	now      func() time.Time
	recorder Recorder
	log      logrus.FieldLogger
}

type QueueOption func(*GenerationQueue)

func WithLeaseDuration(d time.Duration) QueueOption {
	return func(q *GenerationQueue) { q.lease = d }
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *GenerationQueue) { q.now = now }
}

func WithQueueRecorder(r Recorder) QueueOption {
	return func(q *GenerationQueue) { q.recorder = r }
}

func NewGenerationQueue(c *catalog.Catalog, kind entity.QueueKind, log logrus.FieldLogger, opts ...QueueOption) (*GenerationQueue, error) {
	items, ok := c.Queue(kind)
	if !ok {
		return nil, &DomainError{Code: CodeUnknownKind, Message: "unknown queue: " + string(kind)}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	q := &GenerationQueue{
		kind:     kind,
		items:    items,
		lease:    DefaultLeaseDuration,
		now:      time.Now,
		recorder: nopRecorder{},
		log:      log.WithField("queue", kind),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *GenerationQueue) Kind() entity.QueueKind { return q.kind }

// Diagnostics counts items per status and lists the ones IsStuck reports.
func (q *GenerationQueue) Diagnostics(ctx context.Context) (*QueueDiagnostics, error) {
	buckets, err := q.items.CountBy(ctx, "status", entity.QueueFilter{})
	if err != nil {
		return nil, err
	}
	generating, err := q.items.List(ctx, entity.QueueFilter{Status: entity.QueueGenerating})
	if err != nil {
		return nil, err
	}

	now := q.now()
	d := &QueueDiagnostics{
		Queue:          q.kind,
		Counts:         make(map[entity.QueueStatus]int, len(buckets)),
		Stuck:          []entity.QueueItem{},
		StuckThreshold: entity.StuckThreshold.String(),
		CheckedAt:      now.UTC(),
	}
	for _, b := range buckets {
		d.Counts[entity.QueueStatus(b.Key)] = b.Count
		d.Total += b.Count
	}
	for _, item := range generating {
		if item.IsStuck(now) {
			d.Stuck = append(d.Stuck, item)
		}
	}
	return d, nil
}

// ResetStuck moves every stuck item back to pending with a canned error
// message and returns how many were reset.
func (q *GenerationQueue) ResetStuck(ctx context.Context) (int, error) {
	now := q.now()
	patch := store.Record{
		"status":           string(entity.QueuePending),
		"error_message":    StuckResetMessage,
		"lease_owner":      nil,
		"lease_expires_at": nil,
	}

	total := 0
	for _, where := range entity.StuckPredicates(now) {
		rows, err := q.items.UpdateMatching(ctx, where, patch)
		if err != nil {
			return total, err
		}
		total += len(rows)
	}

	if total > 0 {
		q.log.WithField("count", total).Warn("stuck items reset to pending")
	}
	q.recorder.StuckReset(q.kind, total)
	return total, nil
}

// ReclaimExpiredLeases is the narrow sweep run in the background: only items
// whose lease explicitly lapsed go back to pending.
func (q *GenerationQueue) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	rows, err := q.items.UpdateMatching(ctx, entity.ExpiredLeasePredicates(q.now()), store.Record{
		"status":           string(entity.QueuePending),
		"error_message":    LeaseExpiredMessage,
		"lease_owner":      nil,
		"lease_expires_at": nil,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) > 0 {
		q.log.WithField("count", len(rows)).Warn("expired leases reclaimed")
	}
	q.recorder.LeasesReclaimed(q.kind, len(rows))
	return len(rows), nil
}

func (q *GenerationQueue) RetryFailed(ctx context.Context) (int, error) {
	rows, err := q.items.UpdateWhere(ctx, entity.QueueFilter{Status: entity.QueueFailed}, store.Record{
		"status":        string(entity.QueuePending),
		"error_message": nil,
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (q *GenerationQueue) Enqueue(ctx context.Context, input EnqueueInput) (*entity.QueueItem, error) {
	item := &entity.QueueItem{
		Topic:    strings.TrimSpace(input.Topic),
		Language: input.Language,
		Payload:  input.Payload,
	}
	return q.items.Create(ctx, item)
}

// Claim hands the oldest pending item to owner under a fresh lease. The
// status guard makes a lost race fall through to the next candidate.
func (q *GenerationQueue) Claim(ctx context.Context, owner string) (*entity.QueueItem, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ValidationErrors{{Field: "owner", Message: "is required"}}
	}

	candidates, err := q.items.Find(ctx, []store.Predicate{store.Eq("status", string(entity.QueuePending))}, claimCandidates)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		rows, err := q.items.UpdateMatching(ctx, []store.Predicate{
			store.Eq("id", c.ID),
			store.Eq("status", string(entity.QueuePending)),
		}, store.Record{
			"status":           string(entity.QueueGenerating),
			"lease_owner":      owner,
			"lease_expires_at": q.now().Add(q.lease).UTC(),
			"attempts":         c.Attempts + 1,
			"error_message":    nil,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 1 {
			q.log.WithFields(logrus.Fields{"item_id": c.ID, "owner": owner}).Info("queue item claimed")
			return &rows[0], nil
		}
	}
	return nil, ErrQueueEmpty
}

// Renew extends a live lease. An expired or foreign lease is lost.
func (q *GenerationQueue) Renew(ctx context.Context, id, owner string) (*entity.QueueItem, error) {
	now := q.now()
	return q.finishLeased(ctx, id, owner, []store.Predicate{store.Gte("lease_expires_at", now)}, store.Record{
		"lease_expires_at": now.Add(q.lease).UTC(),
	})
}

func (q *GenerationQueue) Complete(ctx context.Context, id, owner, resultID string) (*entity.QueueItem, error) {
	patch := store.Record{
		"status":           string(entity.QueueCompleted),
		"error_message":    nil,
		"lease_owner":      nil,
		"lease_expires_at": nil,
	}
	if resultID != "" {
		patch["result_id"] = resultID
	}
	return q.finishLeased(ctx, id, owner, nil, patch)
}

func (q *GenerationQueue) Fail(ctx context.Context, id, owner, message string) (*entity.QueueItem, error) {
	if strings.TrimSpace(message) == "" {
		message = "generation failed"
	}
	return q.finishLeased(ctx, id, owner, nil, store.Record{
		"status":           string(entity.QueueFailed),
		"error_message":    message,
		"lease_owner":      nil,
		"lease_expires_at": nil,
	})
}

func (q *GenerationQueue) finishLeased(ctx context.Context, id, owner string, extra []store.Predicate, patch store.Record) (*entity.QueueItem, error) {
	where := append([]store.Predicate{
		store.Eq("id", id),
		store.Eq("status", string(entity.QueueGenerating)),
		store.Eq("lease_owner", owner),
	}, extra...)

	rows, err := q.items.UpdateMatching(ctx, where, patch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrLeaseLost
	}
	return &rows[0], nil
}
