package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueItem_IsStuck(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name string
		item QueueItem
		want bool
	}{
		{"generating for 30m1s", QueueItem{Status: QueueGenerating, UpdatedAt: now.Add(-30*time.Minute - time.Second)}, true},
		{"generating for exactly 30m", QueueItem{Status: QueueGenerating, UpdatedAt: now.Add(-30 * time.Minute)}, false},
		{"generating for 29m", QueueItem{Status: QueueGenerating, UpdatedAt: now.Add(-29 * time.Minute)}, false},
		{"pending for an hour", QueueItem{Status: QueuePending, UpdatedAt: now.Add(-time.Hour)}, false},
		{"failed for an hour", QueueItem{Status: QueueFailed, UpdatedAt: now.Add(-time.Hour)}, false},
		{"live lease on an old item", QueueItem{Status: QueueGenerating, UpdatedAt: now.Add(-2 * time.Hour), LeaseExpiresAt: at(time.Minute)}, false},
		{"expired lease on a fresh item", QueueItem{Status: QueueGenerating, UpdatedAt: now.Add(-time.Minute), LeaseExpiresAt: at(-time.Second)}, true},
		{"lease expiring right now", QueueItem{Status: QueueGenerating, UpdatedAt: now, LeaseExpiresAt: at(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.IsStuck(now))
		})
	}
}

func TestFilters_OnlyPresentFields(t *testing.T) {
	assert.Empty(t, LeadFilter{}.Predicates())
	assert.Empty(t, QueueFilter{}.Predicates())
	assert.Empty(t, ArticleFilter{}.Predicates())

	preds := LeadFilter{Status: LeadWon}.Predicates()
	if assert.Len(t, preds, 1) {
		assert.Equal(t, "status", preds[0].Column)
		assert.Equal(t, "won", preds[0].Value)
	}

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	preds = InterviewFilter{Interviewer: "marta", From: &from}.Predicates()
	assert.Len(t, preds, 2)

	active := false
	preds = EmployeeFilter{Active: &active}.Predicates()
	if assert.Len(t, preds, 1) {
		assert.Equal(t, false, preds[0].Value)
	}
}

func TestEnums(t *testing.T) {
	assert.True(t, LeadLost.Valid())
	assert.False(t, LeadStatus("archived").Valid())
	assert.True(t, LeadWon.Closed())
	assert.False(t, LeadQualified.Closed())
	assert.True(t, QueueNews.Valid())
	assert.False(t, QueueKind("podcast").Valid())
	assert.True(t, LeadKindBeckhamLaw.Valid())
}
