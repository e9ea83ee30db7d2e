package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/notify"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

var tracer = otel.Tracer("leadrouter.internal.routing")

// Biller charges a provider for a lead before it is handed over. Payment
// processor details live behind this interface.
type Biller interface {
	ChargeForLead(ctx context.Context, providerID string, lead *leads.Lead) error
}

// NoopBiller accepts every charge.
type NoopBiller struct{}

func (NoopBiller) ChargeForLead(context.Context, string, *leads.Lead) error { return nil }

// LeadStore is the slice of the lead repository routing writes to.
type LeadStore interface {
	MarkRouted(ctx context.Context, id, providerID string, at time.Time) (*leads.Lead, error)
}

// Notifier delivers routing side effects.
type Notifier interface {
	NotifyLeadRouted(ctx context.Context, p *providers.Provider, l *leads.Lead) notify.Result
	NotifyAdminUnserved(ctx context.Context, l *leads.Lead) error
	NotifyPaymentFailed(ctx context.Context, p *providers.Provider, l *leads.Lead, reason string) error
}

// Router assigns new leads to the best candidate that can be billed.
type Router struct {
	matcher  *Matcher
	leads    LeadStore
	biller   Biller
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewRouter(matcher *Matcher, store LeadStore, biller Biller, notifier Notifier, m *metrics.Metrics, logger *logging.Logger) *Router {
	if matcher == nil || store == nil {
		panic("routing: matcher and lead store required")
	}
	if biller == nil {
		biller = NoopBiller{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		matcher:  matcher,
		leads:    store,
		biller:   biller,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      matcher.now,
	}
}

var _ leads.Router = (*Router)(nil)

// Route walks the candidates in order, charging each until one succeeds, then
// records the assignment and notifies the provider. It returns "" when no
// candidate could take the lead; the admin inbox is told in that case.
// Notification failures never undo a completed assignment.
func (r *Router) Route(ctx context.Context, lead *leads.Lead) (string, error) {
	ctx, span := tracer.Start(ctx, "routing.route")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadrouter.lead_id", lead.ID),
		attribute.String("leadrouter.zip", lead.ZIP),
	)

	candidates, err := r.matcher.Match(ctx, Query{City: lead.City, State: lead.State, ZIP: lead.ZIP})
	if err != nil {
		r.metrics.ObserveRouting("error")
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("leadrouter.candidates", len(candidates)))

	for _, c := range candidates {
		p := c.Provider
		if err := r.biller.ChargeForLead(ctx, p.ID, lead); err != nil {
			r.logger.Warn("lead charge failed, trying next provider", "lead_id", lead.ID, "provider_id", p.ID, "error", err)
			if r.notifier != nil {
				_ = r.notifier.NotifyPaymentFailed(ctx, p, lead, err.Error())
			}
			continue
		}

		routed, err := r.leads.MarkRouted(ctx, lead.ID, p.ID, r.now())
		if err != nil {
			r.metrics.ObserveRouting("error")
			span.RecordError(err)
			if errors.Is(err, leads.ErrAlreadyRouted) {
				r.logger.Error("lead already routed after charge", "lead_id", lead.ID, "provider_id", p.ID)
			}
			return "", fmt.Errorf("routing: mark routed: %w", err)
		}

		r.logger.Info("lead routed", "lead_id", lead.ID, "provider_id", p.ID, "tier", c.Tier.String())
		r.metrics.ObserveRouting("routed")
		span.SetAttributes(
			attribute.String("leadrouter.provider_id", p.ID),
			attribute.String("leadrouter.tier", c.Tier.String()),
		)
		if r.notifier != nil {
			res := r.notifier.NotifyLeadRouted(ctx, p, routed)
			if !res.Delivered() {
				r.logger.Warn("routed lead has no successful notification", "lead_id", lead.ID, "provider_id", p.ID)
			}
		}
		return p.ID, nil
	}

	r.logger.Info("no provider available for lead", "lead_id", lead.ID, "zip", lead.ZIP, "candidates", len(candidates))
	r.metrics.ObserveRouting("unserved")
	if r.notifier != nil {
		_ = r.notifier.NotifyAdminUnserved(ctx, lead)
	}
	return "", nil
}
