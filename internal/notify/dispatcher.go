package notify

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/messaging"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

var tracer = otel.Tracer("leadrouter.internal.notify")

// ErrNoRecipient is returned when a notification has nowhere to go.
var ErrNoRecipient = errors.New("notify: no recipient configured")

// Config carries the addresses the dispatcher needs outside provider records.
// LeadReplyTo is the inbound-parse mailbox that provider replies land in.
type Config struct {
	AdminEmail   string
	DashboardURL string
	LeadReplyTo  string
}

// Result reports what happened on each channel for one routed lead.
// A channel that was not attempted has Attempted=false.
type Result struct {
	SMS   ChannelResult
	Email ChannelResult
}

type ChannelResult struct {
	Attempted bool
	Err       error
}

// Sent reports whether the channel was attempted and succeeded.
func (c ChannelResult) Sent() bool { return c.Attempted && c.Err == nil }

// Delivered reports whether at least one channel succeeded.
func (r Result) Delivered() bool { return r.SMS.Sent() || r.Email.Sent() }

// Dispatcher sends lead notifications to providers and the admin inbox.
// Failures are logged and counted; nothing is retried synchronously.
type Dispatcher struct {
	sms     messaging.SMSSender
	email   EmailSender
	cfg     Config
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func NewDispatcher(sms messaging.SMSSender, email EmailSender, cfg Config, m *metrics.Metrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sms: sms, email: email, cfg: cfg, metrics: m, logger: logger}
}

// NotifyLeadRouted delivers a routed lead to its provider over each enabled channel.
func (d *Dispatcher) NotifyLeadRouted(ctx context.Context, p *providers.Provider, l *leads.Lead) Result {
	ctx, span := tracer.Start(ctx, "notify.lead_routed")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadrouter.lead_id", l.ID),
		attribute.String("leadrouter.provider_id", p.ID),
	)

	var res Result
	if p.NotifySMS && d.sms != nil && strings.TrimSpace(p.Phone) != "" {
		res.SMS.Attempted = true
		res.SMS.Err = d.sms.Send(ctx, p.Phone, leadSMSBody(l))
		d.record("sms", p, l, res.SMS.Err)
	}
	if p.NotifyEmail && d.email != nil {
		if to := p.NotificationAddress(); to != "" {
			res.Email.Attempted = true
			res.Email.Err = d.email.Send(ctx, leadEmail(l, to, d.cfg.LeadReplyTo))
			d.record("email", p, l, res.Email.Err)
		}
	}
	if !res.SMS.Attempted && !res.Email.Attempted {
		d.logger.Warn("notify: routed lead has no notification channel", "lead_id", l.ID, "provider_id", p.ID)
	}
	span.SetAttributes(attribute.Bool("leadrouter.notify.delivered", res.Delivered()))
	return res
}

// NotifyAdminUnserved tells the admin inbox that no provider could take a lead.
func (d *Dispatcher) NotifyAdminUnserved(ctx context.Context, l *leads.Lead) error {
	if d.email == nil || strings.TrimSpace(d.cfg.AdminEmail) == "" {
		d.logger.Warn("notify: unserved lead not reported, admin email missing", "lead_id", l.ID, "zip", l.ZIP)
		return ErrNoRecipient
	}
	err := d.email.Send(ctx, unservedEmail(l, d.cfg.AdminEmail))
	d.metrics.ObserveNotification("admin_email", err == nil)
	if err != nil {
		d.logger.Error("notify: admin unserved email failed", "error", err, "lead_id", l.ID)
	}
	return err
}

// NotifyAdmin sends a plain-text message to the admin inbox.
func (d *Dispatcher) NotifyAdmin(ctx context.Context, subject, body string) error {
	if d.email == nil || strings.TrimSpace(d.cfg.AdminEmail) == "" {
		d.logger.Warn("notify: admin message dropped, admin email missing", "subject", subject)
		return ErrNoRecipient
	}
	err := d.email.Send(ctx, EmailMessage{To: d.cfg.AdminEmail, Subject: subject, Body: body, Category: CategoryAdmin})
	d.metrics.ObserveNotification("admin_email", err == nil)
	if err != nil {
		d.logger.Error("notify: admin email failed", "error", err, "subject", subject)
	}
	return err
}

// NotifyPaymentFailed tells a provider they missed a lead because billing failed.
func (d *Dispatcher) NotifyPaymentFailed(ctx context.Context, p *providers.Provider, l *leads.Lead, reason string) error {
	to := strings.TrimSpace(p.ClaimEmail)
	if to == "" {
		to = p.NotificationAddress()
	}
	if d.email == nil || to == "" {
		return ErrNoRecipient
	}
	err := d.email.Send(ctx, paymentFailedEmail(p, l, reason, d.cfg.DashboardURL, to))
	d.metrics.ObserveNotification("payment_failed_email", err == nil)
	if err != nil {
		d.logger.Error("notify: payment failed email failed", "error", err, "provider_id", p.ID, "lead_id", l.ID)
	}
	return err
}

func (d *Dispatcher) record(channel string, p *providers.Provider, l *leads.Lead, err error) {
	d.metrics.ObserveNotification(channel, err == nil)
	if err != nil {
		d.logger.Error("notify: lead notification failed", "channel", channel, "error", err, "provider_id", p.ID, "lead_id", l.ID)
		return
	}
	d.logger.Info("notify: lead notification sent", "channel", channel, "provider_id", p.ID, "lead_id", l.ID)
}
