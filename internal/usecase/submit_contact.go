package usecase

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
)

const ContactAction = "contact_form"

type ContactInput struct {
	Kind     entity.LeadKind `json:"kind,omitempty"`
	FullName string          `json:"full_name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone,omitempty"`
	Company  string          `json:"company,omitempty"`
	Country  string          `json:"country,omitempty"`
	Service  string          `json:"service,omitempty"`
	Message  string          `json:"message,omitempty"`
	Source   string          `json:"source,omitempty"`
}

type ContactOutput struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type SubmitContactUseCase struct {
	catalog  *catalog.Catalog
	limiter  RateLimiter
	mailer   Mailer
	recorder Recorder
	log      logrus.FieldLogger
}

func NewSubmitContactUseCase(c *catalog.Catalog, limiter RateLimiter, mailer Mailer, recorder Recorder, log logrus.FieldLogger) *SubmitContactUseCase {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SubmitContactUseCase{catalog: c, limiter: limiter, mailer: mailer, recorder: recorder, log: log}
}

// Execute validates the submission, charges it against the submitter's
// window and stores it. A limiter that cannot answer rejects the request.
func (uc *SubmitContactUseCase) Execute(ctx context.Context, input ContactInput) (*ContactOutput, error) {
	kind := input.Kind
	if kind == "" {
		kind = entity.LeadKindContact
	}
	leads, ok := uc.catalog.Leads(kind)
	if !ok {
		return nil, ValidationErrors{{Field: "kind", Message: "must be one of: contact company_setup beckham_law"}}
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "website"
	}
	lead := entity.Lead{
		FullName: strings.TrimSpace(input.FullName),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:    strings.TrimSpace(input.Phone),
		Company:  strings.TrimSpace(input.Company),
		Country:  strings.TrimSpace(input.Country),
		Service:  strings.TrimSpace(input.Service),
		Message:  strings.TrimSpace(input.Message),
		Source:   source,
	}
	lead.ApplyDefaults()
	if err := Validate(&lead); err != nil {
		return nil, err
	}

	log := uc.log.WithFields(logrus.Fields{"kind": kind, "email": lead.Email})

	allowed, err := uc.limiter.Allow(ctx, lead.Email, ContactAction)
	if err != nil {
		log.WithError(err).Error("rate limit check failed, rejecting submission")
		uc.recorder.RateLimited(ContactAction, true)
		return nil, &RateLimitError{Action: ContactAction, Cause: err}
	}
	if !allowed {
		log.Warn("contact submission rate limited")
		uc.recorder.RateLimited(ContactAction, false)
		return nil, &RateLimitError{Action: ContactAction}
	}

	created, err := leads.Create(ctx, &lead)
	if err != nil {
		return nil, err
	}

	if uc.mailer != nil {
		if err := uc.mailer.SendContactNotification(ctx, kind, *created); err != nil {
			log.WithError(err).Warn("contact notification e-mail not sent")
		}
	}

	log.WithField("lead_id", created.ID).Info("contact submission stored")
	return &ContactOutput{ID: created.ID, Success: true}, nil
}
