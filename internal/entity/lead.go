package entity

import (
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadWon       LeadStatus = "won"
	LeadLost      LeadStatus = "lost"
)

// Valid reports membership only. Any status may follow any other.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadWon, LeadLost:
		return true
	}
	return false
}

// Closed is true for the statuses that resolve a lead.
func (s LeadStatus) Closed() bool {
	return s == LeadWon || s == LeadLost
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// LeadKind selects one of the lead tables. They share the Lead shape.
type LeadKind string

const (
	LeadKindContact      LeadKind = "contact"
	LeadKindCompanySetup LeadKind = "company_setup"
	LeadKindBeckhamLaw   LeadKind = "beckham_law"
)

func (k LeadKind) Valid() bool {
	switch k {
	case LeadKindContact, LeadKindCompanySetup, LeadKindBeckhamLaw:
		return true
	}
	return false
}

type Lead struct {
	ID          string     `json:"id,omitempty"`
	FullName    string     `json:"full_name" validate:"required,min=2,max=200"`
	Email       string     `json:"email" validate:"required,email,max=254"`
	Phone       string     `json:"phone,omitempty" validate:"omitempty,max=40"`
	Company     string     `json:"company,omitempty" validate:"omitempty,max=200"`
	Country     string     `json:"country,omitempty" validate:"omitempty,max=80"`
	Service     string     `json:"service,omitempty" validate:"omitempty,max=120"`
	Message     string     `json:"message,omitempty" validate:"omitempty,max=5000"`
	Status      LeadStatus `json:"status" validate:"omitempty,oneof=new contacted qualified won lost"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Source      string     `json:"source,omitempty" validate:"omitempty,max=80"`
	Notes       string     `json:"notes,omitempty"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (l *Lead) ApplyDefaults() {
	if l.Status == "" {
		l.Status = LeadNew
	}
	if l.Priority == "" {
		l.Priority = PriorityMedium
	}
}

type LeadFilter struct {
	Status   LeadStatus `json:"status,omitempty"`
	Priority Priority   `json:"priority,omitempty"`
	Source   string     `json:"source,omitempty"`
	Search   string     `json:"search,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

func (f LeadFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Priority != "" {
		preds = append(preds, store.Eq("priority", string(f.Priority)))
	}
	if f.Source != "" {
		preds = append(preds, store.Eq("source", f.Source))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "full_name", "email", "company"))
	}
	return append(preds, store.Range("created_at", f.From, f.To)...)
}

// LeadHistory records one status change of a lead.
type LeadHistory struct {
	ID         string     `json:"id,omitempty"`
	LeadID     string     `json:"lead_id" validate:"required"`
	LeadKind   LeadKind   `json:"lead_kind" validate:"required"`
	FromStatus LeadStatus `json:"from_status"`
	ToStatus   LeadStatus `json:"to_status" validate:"required"`
	Note       string     `json:"note,omitempty"`
	ChangedBy  string     `json:"changed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type LeadHistoryFilter struct {
	LeadID   string   `json:"lead_id,omitempty"`
	LeadKind LeadKind `json:"lead_kind,omitempty"`
}

func (f LeadHistoryFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.LeadID != "" {
		preds = append(preds, store.Eq("lead_id", f.LeadID))
	}
	if f.LeadKind != "" {
		preds = append(preds, store.Eq("lead_kind", string(f.LeadKind)))
	}
	return preds
}
