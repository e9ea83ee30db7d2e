package replies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilephlebotomy/leadrouter/internal/audit"
	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

var tracer = otel.Tracer("leadrouter.internal.replies")

// Channel is the transport a reply arrived on.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Default fallback windows for replies without an explicit lead reference.
const (
	DefaultSMSWindow   = 24 * time.Hour
	DefaultEmailWindow = 48 * time.Hour
)

// Reply is one inbound provider message, already decoded from its transport.
type Reply struct {
	Channel    Channel
	Sender     string
	Subject    string
	Body       string
	ExternalID string
}

// text is what lead references and keywords are searched in.
func (r Reply) text() string {
	if r.Subject == "" {
		return r.Body
	}
	return r.Subject + " " + r.Body
}

// notes is what gets stored on the lead.
func (r Reply) notes() string {
	if strings.TrimSpace(r.Body) != "" {
		return r.Body
	}
	return r.Subject
}

// Result is a successfully applied reply.
type Result struct {
	Provider *providers.Provider
	Lead     *leads.Lead
	Rule     Rule
}

// LeadStore is the slice of the lead repository reply processing needs.
type LeadStore interface {
	GetForProvider(ctx context.Context, id, providerID string) (*leads.Lead, error)
	MostRecentForProvider(ctx context.Context, providerID string, since time.Time) (*leads.Lead, error)
	Apply(ctx context.Context, id, providerID string, t leads.Transition) (*leads.Lead, error)
}

// AuditRecorder appends reply history.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event) error
}

// Windows holds the per-channel fallback freshness windows.
type Windows struct {
	SMS   time.Duration
	Email time.Duration
}

func (w Windows) forChannel(c Channel) time.Duration {
	if c == ChannelEmail {
		if w.Email > 0 {
			return w.Email
		}
		return DefaultEmailWindow
	}
	if w.SMS > 0 {
		return w.SMS
	}
	return DefaultSMSWindow
}

// Processor runs the channel-independent reply pipeline: provider identity,
// target lead, intent, transition, audit.
type Processor struct {
	leads   LeadStore
	audit   AuditRecorder
	windows Windows
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithAudit(rec AuditRecorder) ProcessorOption {
	return func(p *Processor) { p.audit = rec }
}

func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func NewProcessor(store LeadStore, windows Windows, logger *logging.Logger, opts ...ProcessorOption) *Processor {
	if store == nil {
		panic("replies: lead store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		leads:   store,
		windows: windows,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process applies one reply. Every failure is a *ReplyError; nothing is
// mutated unless the returned error is nil.
func (p *Processor) Process(ctx context.Context, reply Reply, identity IdentityResolver) (*Result, error) {
	ctx, span := tracer.Start(ctx, "replies.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadrouter.reply.channel", string(reply.Channel)),
		attribute.String("leadrouter.reply.external_id", reply.ExternalID),
	)

	res, err := p.process(ctx, reply, identity)
	event := audit.Event{
		Channel:    string(reply.Channel),
		Sender:     reply.Sender,
		RawMessage: reply.text(),
		ExternalID: reply.ExternalID,
		Result:     audit.ResultApplied,
	}
	if res != nil {
		if res.Provider != nil {
			event.ProviderID = res.Provider.ID
			span.SetAttributes(attribute.String("leadrouter.provider_id", res.Provider.ID))
		}
		if res.Lead != nil {
			event.LeadID = res.Lead.ID
			span.SetAttributes(attribute.String("leadrouter.lead_id", res.Lead.ID))
		}
		event.Action = string(res.Rule.Intent.Action)
		event.Outcome = string(res.Rule.Intent.Outcome)
	}
	if err != nil {
		event.Result = KindOf(err).String()
		span.RecordError(err)
	}
	p.metrics.ObserveReply(string(reply.Channel), metricResult(res, err))
	p.record(ctx, event)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func metricResult(res *Result, err error) string {
	if err != nil {
		return KindOf(err).String()
	}
	return string(res.Rule.Intent.Action)
}

// process returns a partial Result alongside errors so the audit event
// carries whatever was resolved before the failure.
func (p *Processor) process(ctx context.Context, reply Reply, identity IdentityResolver) (*Result, error) {
	res := &Result{}

	provider, err := identity.Resolve(ctx, reply.Sender)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			p.logger.Warn("reply from unknown sender", "channel", reply.Channel, "sender", reply.Sender)
			return res, &ReplyError{Kind: KindProviderNotFound, Err: err}
		}
		return res, &ReplyError{Kind: KindInternal, Err: fmt.Errorf("resolve provider: %w", err)}
	}
	res.Provider = provider

	lead, err := p.resolveLead(ctx, reply, provider.ID)
	if err != nil {
		return res, err
	}
	res.Lead = lead

	rule, ok := Classify(withoutLeadReference(reply.text()))
	if !ok {
		return res, &ReplyError{Kind: KindUnknownKeyword, Err: ErrUnknownKeyword}
	}
	res.Rule = rule

	updated, err := p.leads.Apply(ctx, lead.ID, provider.ID, leads.Transition{
		Action:  rule.Intent.Action,
		Outcome: rule.Intent.Outcome,
		Notes:   reply.notes(),
		At:      p.now(),
	})
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			return res, &ReplyError{Kind: KindNoRecentLead, Err: ErrNoRecentLead}
		}
		return res, &ReplyError{Kind: KindInternal, Err: fmt.Errorf("apply %s: %w", rule.Intent.Action, err)}
	}
	res.Lead = updated

	p.logger.Info("provider reply applied",
		"channel", reply.Channel,
		"provider_id", provider.ID,
		"lead_id", updated.ID,
		"action", rule.Intent.Action,
		"outcome", rule.Intent.Outcome,
		"status", updated.Status,
	)
	return res, nil
}

// resolveLead prefers an explicit token, scoped to the provider. Without one
// it falls back to the provider's most recent lead inside the channel window.
func (p *Processor) resolveLead(ctx context.Context, reply Reply, providerID string) (*leads.Lead, error) {
	if ref, ok := ExtractLeadReference(reply.text()); ok {
		lead, err := p.leads.GetForProvider(ctx, ref, providerID)
		if errors.Is(err, leads.ErrLeadNotFound) {
			p.logger.Warn("reply references lead not routed to sender", "provider_id", providerID, "lead_ref", ref)
			return nil, &ReplyError{Kind: KindNoRecentLead, Err: ErrNoRecentLead}
		}
		if err != nil {
			return nil, &ReplyError{Kind: KindInternal, Err: fmt.Errorf("lookup lead %s: %w", ref, err)}
		}
		return lead, nil
	}

	since := p.now().Add(-p.windows.forChannel(reply.Channel))
	lead, err := p.leads.MostRecentForProvider(ctx, providerID, since)
	if errors.Is(err, leads.ErrLeadNotFound) {
		return nil, &ReplyError{Kind: KindNoRecentLead, Err: ErrNoRecentLead}
	}
	if err != nil {
		return nil, &ReplyError{Kind: KindInternal, Err: fmt.Errorf("most recent lead: %w", err)}
	}
	return lead, nil
}

func (p *Processor) record(ctx context.Context, e audit.Event) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, e); err != nil {
		p.logger.Error("failed to record reply audit event", "error", err, "channel", e.Channel, "lead_id", e.LeadID)
	}
}
