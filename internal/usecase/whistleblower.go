package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

const (
	// TrackingAlphabet leaves out I, O, 0 and 1.
	TrackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	MaxTrackingAttempts = 10
)

var trackingCodePattern = regexp.MustCompile(`^WB-\d{4}-[` + TrackingAlphabet + `]{4}$`)

// NewTrackingCode returns WB-<year>-<4 chars>. The alphabet has 32 symbols so
// masking a random byte keeps the draw uniform.
func NewTrackingCode(now time.Time, random io.Reader) (string, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = TrackingAlphabet[int(b)&(len(TrackingAlphabet)-1)]
	}
	return fmt.Sprintf("WB-%04d-%s", now.Year(), buf), nil
}

func ValidTrackingCode(code string) bool {
	return trackingCodePattern.MatchString(code)
}

type WhistleblowerInput struct {
	Category     string `json:"category"`
	Description  string `json:"description"`
	Anonymous    bool   `json:"anonymous"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

type WhistleblowerReceipt struct {
	TrackingCode string              `json:"tracking_code"`
	Status       entity.ReportStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// WhistleblowerStatus is everything a submitter may learn about a report.
type WhistleblowerStatus struct {
	TrackingCode string              `json:"tracking_code"`
	Status       entity.ReportStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
}

type WhistleblowerUseCase struct {
	catalog *catalog.Catalog
	mailer  Mailer
	now     func() time.Time
	random  io.Reader
	log     logrus.FieldLogger
}

func NewWhistleblowerUseCase(c *catalog.Catalog, mailer Mailer, log logrus.FieldLogger) *WhistleblowerUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WhistleblowerUseCase{catalog: c, mailer: mailer, now: time.Now, random: rand.Reader, log: log}
}

func (uc *WhistleblowerUseCase) Submit(ctx context.Context, input WhistleblowerInput) (*WhistleblowerReceipt, error) {
	report := entity.WhistleblowerReport{
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		Anonymous:   input.Anonymous,
	}
	if !input.Anonymous {
		report.ContactName = strings.TrimSpace(input.ContactName)
		report.ContactEmail = strings.ToLower(strings.TrimSpace(input.ContactEmail))
	}
	report.ApplyDefaults()
	if err := Validate(&report); err != nil {
		return nil, err
	}

	code, err := uc.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}
	report.TrackingCode = code

	created, err := uc.catalog.Whistleblower.Create(ctx, &report)
	if err != nil {
		return nil, err
	}

	if uc.mailer != nil && created.ContactEmail != "" {
		if err := uc.mailer.SendWhistleblowerReceipt(ctx, created.ContactEmail, code); err != nil {
			uc.log.WithError(err).WithField("tracking_code", code).Warn("whistleblower receipt e-mail not sent")
		}
	}

	uc.log.WithFields(logrus.Fields{"tracking_code": code, "category": created.Category}).Info("whistleblower report received")
	return &WhistleblowerReceipt{TrackingCode: code, Status: created.Status, CreatedAt: created.CreatedAt}, nil
}

func (uc *WhistleblowerUseCase) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= MaxTrackingAttempts; attempt++ {
		code, err := NewTrackingCode(uc.now(), uc.random)
		if err != nil {
			return "", &TechnicalError{Code: "RANDOM_SOURCE", Message: "could not generate tracking code", Err: err}
		}

		taken, err := uc.catalog.Whistleblower.Exists(ctx, store.Eq("tracking_code", code))
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		uc.log.WithFields(logrus.Fields{"tracking_code": code, "attempt": attempt}).Warn("tracking code collision")
	}
	return "", &DomainError{Code: CodeNoFreeCode, Message: fmt.Sprintf("no free tracking code after %d attempts", MaxTrackingAttempts)}
}

// Lookup returns the status of the report with the given tracking code.
func (uc *WhistleblowerUseCase) Lookup(ctx context.Context, code string) (*WhistleblowerStatus, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidTrackingCode(code) {
		return nil, ValidationErrors{{Field: "tracking_code", Message: "must look like WB-YYYY-XXXX"}}
	}

	reports, err := uc.catalog.Whistleblower.List(ctx, entity.WhistleblowerFilter{TrackingCode: code})
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, store.ErrNotFound
	}

	r := reports[0]
	return &WhistleblowerStatus{
		TrackingCode: r.TrackingCode,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ResolvedAt:   r.ResolvedAt,
	}, nil
}
