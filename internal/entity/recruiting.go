package entity

import (
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type CandidateStatus string

const (
	CandidateNew       CandidateStatus = "new"
	CandidateScreening CandidateStatus = "screening"
	CandidateInterview CandidateStatus = "interview"
	CandidateOffer     CandidateStatus = "offer"
	CandidateHired     CandidateStatus = "hired"
	CandidateRejected  CandidateStatus = "rejected"
)

type Candidate struct {
	ID        string          `json:"id,omitempty"`
	FullName  string          `json:"full_name" validate:"required,min=2,max=200"`
	Email     string          `json:"email" validate:"required,email"`
	Phone     string          `json:"phone,omitempty" validate:"omitempty,max=40"`
	Position  string          `json:"position" validate:"required,max=120"`
	Status    CandidateStatus `json:"status" validate:"omitempty,oneof=new screening interview offer hired rejected"`
	Source    string          `json:"source,omitempty"`
	ResumeURL string          `json:"resume_url,omitempty" validate:"omitempty,url"`
	Rating    *int            `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (c *Candidate) ApplyDefaults() {
	if c.Status == "" {
		c.Status = CandidateNew
	}
}

type CandidateFilter struct {
	Status   CandidateStatus `json:"status,omitempty"`
	Position string          `json:"position,omitempty"`
	Search   string          `json:"search,omitempty"`
}

func (f CandidateFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Position != "" {
		preds = append(preds, store.Eq("position", f.Position))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "full_name", "email"))
	}
	return preds
}

type InterviewStatus string

const (
	InterviewScheduled InterviewStatus = "scheduled"
	InterviewCompleted InterviewStatus = "completed"
	InterviewCancelled InterviewStatus = "cancelled"
	InterviewNoShow    InterviewStatus = "no_show"
)

type Interview struct {
	ID          string          `json:"id,omitempty"`
	CandidateID string          `json:"candidate_id" validate:"required"`
	ScheduledAt time.Time       `json:"scheduled_at" validate:"required"`
	Interviewer string          `json:"interviewer" validate:"required,max=120"`
	Kind        string          `json:"kind" validate:"required,oneof=phone video onsite"`
	Status      InterviewStatus `json:"status" validate:"omitempty,oneof=scheduled completed cancelled no_show"`
	Feedback    string          `json:"feedback,omitempty"`
	Score       *int            `json:"score,omitempty" validate:"omitempty,min=1,max=10"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (i *Interview) ApplyDefaults() {
	if i.Status == "" {
		i.Status = InterviewScheduled
	}
}

type InterviewFilter struct {
	CandidateID string          `json:"candidate_id,omitempty"`
	Status      InterviewStatus `json:"status,omitempty"`
	Interviewer string          `json:"interviewer,omitempty"`
	From        *time.Time      `json:"from,omitempty"`
	To          *time.Time      `json:"to,omitempty"`
}

func (f InterviewFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.CandidateID != "" {
		preds = append(preds, store.Eq("candidate_id", f.CandidateID))
	}
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Interviewer != "" {
		preds = append(preds, store.Eq("interviewer", f.Interviewer))
	}
	return append(preds, store.Range("scheduled_at", f.From, f.To)...)
}
