package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

type ChangeLeadStatusInput struct {
	Kind      entity.LeadKind   `json:"-"`
	LeadID    string            `json:"-"`
	Status    entity.LeadStatus `json:"status"`
	Note      string            `json:"note,omitempty"`
	ChangedBy string            `json:"changed_by,omitempty"`
}

// ChangeLeadStatusUseCase writes a lead's status and its history row. If the
// history insert fails the previous status is restored.
type ChangeLeadStatusUseCase struct {
	catalog *catalog.Catalog
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewChangeLeadStatusUseCase(c *catalog.Catalog, now func() time.Time, log logrus.FieldLogger) *ChangeLeadStatusUseCase {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ChangeLeadStatusUseCase{catalog: c, now: now, log: log}
}

func (uc *ChangeLeadStatusUseCase) Execute(ctx context.Context, input ChangeLeadStatusInput) (*entity.Lead, error) {
	leads, ok := uc.catalog.Leads(input.Kind)
	if !ok {
		return nil, &DomainError{Code: CodeUnknownKind, Message: "unknown lead kind: " + string(input.Kind)}
	}
	if !input.Status.Valid() {
		return nil, ValidationErrors{{Field: "status", Message: "must be one of: new contacted qualified won lost"}}
	}

	current, err := leads.Find(ctx, []store.Predicate{store.Eq("id", input.LeadID)}, 1)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, store.ErrNotFound
	}
	previous := current[0]

	now := uc.now().UTC()
	patch := store.Record{"status": string(input.Status)}
	if input.Status == entity.LeadContacted && previous.ContactedAt == nil {
		patch["contacted_at"] = now
	}
	switch {
	case input.Status.Closed():
		patch["resolved_at"] = now
	case previous.Status.Closed():
		patch["resolved_at"] = nil
	}

	var updated *entity.Lead
	tx := NewTransaction(uc.log)
	tx.AddOperation("update lead status",
		func(ctx context.Context) error {
			var err error
			updated, err = leads.Update(ctx, input.LeadID, patch)
			return err
		},
		func(ctx context.Context) error {
			_, err := leads.Update(ctx, input.LeadID, store.Record{
				"status":       string(previous.Status),
				"contacted_at": previous.ContactedAt,
				"resolved_at":  previous.ResolvedAt,
			})
			return err
		},
	)
	tx.AddOperation("record lead history",
		func(ctx context.Context) error {
			_, err := uc.catalog.LeadHistory.Create(ctx, &entity.LeadHistory{
				LeadID:     input.LeadID,
				LeadKind:   input.Kind,
				FromStatus: previous.Status,
				ToStatus:   input.Status,
				Note:       input.Note,
				ChangedBy:  input.ChangedBy,
			})
			return err
		},
		nil,
	)

	if err := tx.Execute(ctx); err != nil {
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"lead_id": input.LeadID,
		"kind":    input.Kind,
		"from":    previous.Status,
		"to":      input.Status,
	}).Info("lead status changed")
	return updated, nil
}
