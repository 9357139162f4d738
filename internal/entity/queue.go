package entity

import (
	"encoding/json"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

// StuckThreshold is how long an item may sit in generating, without a lease,
// before it is considered abandoned.
const StuckThreshold = 30 * time.Minute

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueGenerating QueueStatus = "generating"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueuePending, QueueGenerating, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// QueueKind names a generation queue.
type QueueKind string

const (
	QueueBlog QueueKind = "blog"
	QueueNews QueueKind = "news"
)

func (k QueueKind) Valid() bool {
	return k == QueueBlog || k == QueueNews
}

type QueueItem struct {
	ID             string          `json:"id,omitempty"`
	Topic          string          `json:"topic" validate:"required,max=300"`
	Language       string          `json:"language,omitempty" validate:"omitempty,len=2"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         QueueStatus     `json:"status"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	Attempts       int             `json:"attempts"`
	LeaseOwner     *string         `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	ResultID       *string         `json:"result_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (q *QueueItem) ApplyDefaults() {
	if q.Status == "" {
		q.Status = QueuePending
	}
}

// IsStuck reports whether a generating item should be handed back to pending.
// Leased items are judged by their lease; unleased ones by the updated_at
// heuristic. Both comparisons are strict.
func (q QueueItem) IsStuck(now time.Time) bool {
	if q.Status != QueueGenerating {
		return false
	}
	if q.LeaseExpiresAt != nil {
		return q.LeaseExpiresAt.Before(now)
	}
	return q.UpdatedAt.Before(now.Add(-StuckThreshold))
}

// StuckPredicates expresses IsStuck as store filters, one set per branch, so
// a sweep can write exactly the rows IsStuck reports.
func StuckPredicates(now time.Time) [][]store.Predicate {
	return [][]store.Predicate{
		{
			store.Eq("status", string(QueueGenerating)),
			store.IsNull("lease_expires_at"),
			store.Lt("updated_at", now.Add(-StuckThreshold)),
		},
		ExpiredLeasePredicates(now),
	}
}

func ExpiredLeasePredicates(now time.Time) []store.Predicate {
	return []store.Predicate{
		store.Eq("status", string(QueueGenerating)),
		store.Lt("lease_expires_at", now),
	}
}

func (q QueueItem) LeaseExpired(now time.Time) bool {
	return q.Status == QueueGenerating && q.LeaseExpiresAt != nil && q.LeaseExpiresAt.Before(now)
}

type QueueFilter struct {
	Status QueueStatus `json:"status,omitempty"`
	Search string      `json:"search,omitempty"`
}

func (f QueueFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "topic"))
	}
	return preds
}

// AutomationSettings is the singleton row configuring blog or news generation.
type AutomationSettings struct {
	ID             int       `json:"id"`
	Enabled        bool      `json:"enabled"`
	Frequency      string    `json:"frequency" validate:"required,oneof=hourly daily weekly"`
	ItemsPerRun    int       `json:"items_per_run" validate:"min=1,max=50"`
	PublishTime    string    `json:"publish_time" validate:"omitempty,datetime=15:04"`
	Topics         []string  `json:"topics" validate:"dive,required,max=120"`
	Languages      []string  `json:"languages" validate:"dive,len=2"`
	AutoPublish    bool      `json:"auto_publish"`
	NotifyOnFailed bool      `json:"notify_on_failed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		ID:          1,
		Frequency:   "daily",
		ItemsPerRun: 1,
		PublishTime: "09:00",
		Topics:      []string{},
		Languages:   []string{"es"},
	}
}
