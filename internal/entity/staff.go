package entity

import (
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type Employee struct {
	ID         string    `json:"id,omitempty"`
	FullName   string    `json:"full_name" validate:"required,min=2,max=200"`
	Email      string    `json:"email" validate:"required,email"`
	Department string    `json:"department" validate:"required,max=80"`
	Position   string    `json:"position" validate:"required,max=120"`
	Active     bool      `json:"active"`
	HiredOn    string    `json:"hired_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Salary     float64   `json:"salary" validate:"gte=0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type EmployeeFilter struct {
	Department string `json:"department,omitempty"`
	Active     *bool  `json:"active,omitempty"`
	Search     string `json:"search,omitempty"`
}

func (f EmployeeFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Department != "" {
		preds = append(preds, store.Eq("department", f.Department))
	}
	if f.Active != nil {
		preds = append(preds, store.Eq("active", *f.Active))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "full_name", "email", "position"))
	}
	return preds
}

type PayrollStatus string

const (
	PayrollDraft    PayrollStatus = "draft"
	PayrollApproved PayrollStatus = "approved"
	PayrollPaid     PayrollStatus = "paid"
)

type PayrollEntry struct {
	ID         string        `json:"id,omitempty"`
	EmployeeID string        `json:"employee_id" validate:"required"`
	Period     string        `json:"period" validate:"required,datetime=2006-01"`
	Gross      float64       `json:"gross" validate:"gte=0"`
	Deductions float64       `json:"deductions" validate:"gte=0"`
	Net        float64       `json:"net" validate:"gte=0"`
	Status     PayrollStatus `json:"status" validate:"omitempty,oneof=draft approved paid"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (p *PayrollEntry) ApplyDefaults() {
	if p.Status == "" {
		p.Status = PayrollDraft
	}
	if p.Net == 0 && p.Gross > 0 {
		p.Net = p.Gross - p.Deductions
	}
}

type PayrollFilter struct {
	EmployeeID string        `json:"employee_id,omitempty"`
	Period     string        `json:"period,omitempty"`
	Status     PayrollStatus `json:"status,omitempty"`
}

func (f PayrollFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.EmployeeID != "" {
		preds = append(preds, store.Eq("employee_id", f.EmployeeID))
	}
	if f.Period != "" {
		preds = append(preds, store.Eq("period", f.Period))
	}
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	return preds
}

type Notification struct {
	ID        string    `json:"id,omitempty"`
	Recipient string    `json:"recipient" validate:"required"`
	Kind      string    `json:"kind" validate:"required,max=60"`
	Title     string    `json:"title" validate:"required,max=200"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NotificationFilter struct {
	Recipient string `json:"recipient,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Unread    bool   `json:"unread,omitempty"`
}

func (f NotificationFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Recipient != "" {
		preds = append(preds, store.Eq("recipient", f.Recipient))
	}
	if f.Kind != "" {
		preds = append(preds, store.Eq("kind", f.Kind))
	}
	if f.Unread {
		preds = append(preds, store.Eq("read", false))
	}
	return preds
}
