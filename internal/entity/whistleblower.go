package entity

import (
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type ReportStatus string

const (
	ReportReceived    ReportStatus = "received"
	ReportUnderReview ReportStatus = "under_review"
	ReportResolved    ReportStatus = "resolved"
	ReportDismissed   ReportStatus = "dismissed"
)

// WhistleblowerReport is an anonymous-capable report. The submitter only ever
// holds the tracking code.
type WhistleblowerReport struct {
	ID           string       `json:"id,omitempty"`
	TrackingCode string       `json:"tracking_code"`
	Category     string       `json:"category" validate:"required,oneof=fraud harassment corruption data_protection conflict_of_interest other"`
	Description  string       `json:"description" validate:"required,min=20,max=10000"`
	Anonymous    bool         `json:"anonymous"`
	ContactName  string       `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	ContactEmail string       `json:"contact_email,omitempty" validate:"omitempty,email"`
	Status       ReportStatus `json:"status" validate:"omitempty,oneof=received under_review resolved dismissed"`
	Priority     Priority     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Resolution   string       `json:"resolution,omitempty"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (r *WhistleblowerReport) ApplyDefaults() {
	if r.Status == "" {
		r.Status = ReportReceived
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
}

type WhistleblowerFilter struct {
	Status       ReportStatus `json:"status,omitempty"`
	Category     string       `json:"category,omitempty"`
	Priority     Priority     `json:"priority,omitempty"`
	TrackingCode string       `json:"tracking_code,omitempty"`
}

func (f WhistleblowerFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Category != "" {
		preds = append(preds, store.Eq("category", f.Category))
	}
	if f.Priority != "" {
		preds = append(preds, store.Eq("priority", string(f.Priority)))
	}
	if f.TrackingCode != "" {
		preds = append(preds, store.Eq("tracking_code", f.TrackingCode))
	}
	return preds
}
