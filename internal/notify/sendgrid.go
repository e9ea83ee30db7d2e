package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridConfig holds configuration for SendGrid. Host overrides the API
// base URL and is empty in production.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Host      string
}

// SendGridSender sends lead mail through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey string
	host   string
	from   sender
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key so callers can fall back.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		apiKey: cfg.APIKey,
		host:   cfg.Host,
		from:   newSender(cfg.FromEmail, cfg.FromName),
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.apiKey == "" {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(s.build(msg))

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To, "lead_id", msg.LeadID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected email", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid",
		"to", msg.To,
		"category", msg.Category,
		"lead_id", msg.LeadID,
		"status", response.StatusCode,
	)
	return nil
}

// build assembles the v3 payload. Plain text goes first; SendGrid rejects
// payloads whose first content block is not text/plain.
func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.name, s.from.email))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	if msg.Body != "" {
		m.AddContent(mail.NewContent("text/plain", msg.Body))
	}
	if html := msg.htmlBody(); html != "" {
		m.AddContent(mail.NewContent("text/html", html))
	}
	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	if msg.LeadID != "" {
		m.SetHeader(LeadIDHeader, msg.LeadID)
		m.SetCustomArg("lead_id", msg.LeadID)
	}
	return m
}

var _ EmailSender = (*SendGridSender)(nil)
