package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var kindLabels = map[entity.LeadKind]string{
	entity.LeadKindContact:      "contact",
	entity.LeadKindCompanySetup: "company setup",
	entity.LeadKindBeckhamLaw:   "Beckham law",
}

func NewEmailSender(host string, port int, user, password, from, notifyTo, lookupURL string) *EmailSender {
	s := &EmailSender{
		Host:      host,
		Port:      port,
		User:      user,
		Password:  password,
		From:      from,
		NotifyTo:  notifyTo,
		LookupURL: lookupURL,
	}
	if host != "" {
		s.dialer = gomail.NewDialer(host, port, user, password)
	}
	return s
}

// WithDialer swaps the SMTP transport.
func (s *EmailSender) WithDialer(d Dialer) *EmailSender {
	s.dialer = d
	return s
}

func (s *EmailSender) Enabled() bool { return s.dialer != nil }

func (s *EmailSender) SendContactNotification(ctx context.Context, kind entity.LeadKind, lead entity.Lead) error {
	if !s.Enabled() || s.NotifyTo == "" {
		logrus.WithField("lead_id", lead.ID).Debug("smtp disabled, skipping lead notification")
		return nil
	}

	label, ok := kindLabels[kind]
	if !ok {
		label = string(kind)
	}

	data := ContactEmailData{
		KindLabel: label,
		Name:      lead.FullName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Company:   lead.Company,
		Country:   lead.Country,
		Service:   lead.Service,
		Message:   lead.Message,
		Source:    lead.Source,
		LeadID:    lead.ID,
	}

	subject := fmt.Sprintf("New %s lead: %s", label, lead.FullName)
	return s.send(ctx, s.NotifyTo, lead.Email, subject, "contact_notification.html", data)
}

func (s *EmailSender) SendWhistleblowerReceipt(ctx context.Context, to, trackingCode string) error {
	if !s.Enabled() {
		logrus.Debug("smtp disabled, skipping whistleblower receipt")
		return nil
	}

	data := ReceiptEmailData{TrackingCode: trackingCode, LookupURL: s.LookupURL}
	return s.send(ctx, to, "", "Your report was received", "whistleblower_receipt.html", data)
}

func (s *EmailSender) send(ctx context.Context, to, replyTo, subject, tmpl string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	if replyTo != "" {
		m.SetHeader("Reply-To", replyTo)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send smtp email: %w", err)
	}
	return nil
}
