package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// EmailSender delivers one email. SendGrid, SES and the stub are interchangeable.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Categories tag outbound mail in SendGrid stats and SES event tags.
const (
	CategoryLeadRouted    = "lead_routed"
	CategoryPaymentFailed = "payment_failed"
	CategoryAdmin         = "admin"
)

// LeadIDHeader carries the lead ID on outbound lead mail.
const LeadIDHeader = "X-Lead-ID"

// DefaultFromName is the display name used when none is configured.
const DefaultFromName = "Mobile Phlebotomy Leads"

// EmailMessage is one outbound email. ReplyTo, LeadID and Category are
// optional; senders map them to whatever their API supports.
type EmailMessage struct {
	To       string
	ToName   string
	ReplyTo  string
	Subject  string
	Body     string
	HTML     string
	LeadID   string
	Category string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("notify: email has no recipient")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("notify: email to %s has no subject", m.To)
	}
	return nil
}

func (m EmailMessage) htmlBody() string {
	if m.HTML != "" {
		return m.HTML
	}
	return textToHTML(m.Body)
}

// sender is the From identity shared by the real providers.
type sender struct {
	email string
	name  string
}

func newSender(email, name string) sender {
	if strings.TrimSpace(name) == "" {
		name = DefaultFromName
	}
	return sender{email: strings.TrimSpace(email), name: name}
}

// address renders the RFC 5322 form, quoting the display name when needed.
func (s sender) address() string {
	return (&mail.Address{Name: s.name, Address: s.email}).String()
}

// StubEmailSender logs instead of sending. Used when EMAIL_PROVIDER=stub.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("stub email sender: would send email",
		"to", msg.To,
		"subject", msg.Subject,
		"category", msg.Category,
		"lead_id", msg.LeadID,
	)
	return nil
}

var _ EmailSender = (*StubEmailSender)(nil)
