package mail

import (
	"gopkg.in/gomail.v2"
)

type ContactEmailData struct {
	KindLabel string
	Name      string
	Email     string
	Phone     string
	Company   string
	Country   string
	Service   string
	Message   string
	Source    string
	LeadID    string
}

type ReceiptEmailData struct {
	TrackingCode string
	LookupURL    string
}

// Dialer is the part of gomail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// NotifyTo receives internal notifications about new leads.
	NotifyTo string
	// LookupURL is where whistleblowers check their report status.
	LookupURL string

	dialer Dialer
}
