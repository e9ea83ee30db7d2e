package replies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/messaging"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

const (
	smsProviderNotFound = "Error: Provider not found. Please contact support."
	smsNoRecentLead     = `No recent lead found. Please include lead ID (e.g., "CLAIMED #clp3x...").`
	smsInternalError    = "Error processing your reply. Please try again or contact support."
	smsSystemError      = "System error. Please contact support."

	maxEmailFormBytes = 10 << 20
)

// HandlerConfig carries the deployment-specific values the webhooks need.
type HandlerConfig struct {
	// WebhookSecret enables Twilio signature checks. Empty skips them.
	WebhookSecret string
	// PublicBaseURL is the externally visible origin used to rebuild the
	// signed URL behind a proxy. Empty derives it from the request.
	PublicBaseURL string
	DashboardURL  string
	SupportEmail  string
}

// Handler serves the SMS and email reply webhooks.
type Handler struct {
	processor *Processor
	finder    ProviderFinder
	replay    ReplayGuard
	cfg       HandlerConfig
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func NewHandler(processor *Processor, finder ProviderFinder, replay ReplayGuard, cfg HandlerConfig, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if processor == nil || finder == nil {
		panic("replies: processor and provider finder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor: processor,
		finder:    finder,
		replay:    replay,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// SMSReply handles POST /webhooks/sms-reply (Twilio inbound message).
func (h *Handler) SMSReply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracer.Start(r.Context(), "replies.webhook.sms", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	// claimed is the replay key this delivery holds; a panic must give it back.
	var claimed string
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("sms reply handler panic", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			h.release(ctx, claimed)
			messaging.WriteTwiML(w, smsInternalError)
		}
		h.metrics.ObserveWebhookLatency(string(ChannelSMS), time.Since(start).Seconds())
	}()

	if h.cfg.WebhookSecret != "" && !messaging.ValidateTwilioSignature(r, h.cfg.WebhookSecret, h.webhookURL(r)) {
		h.logger.Warn("invalid twilio signature", "path", r.URL.Path)
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	in, err := messaging.ParseInboundSMS(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("leadrouter.twilio.message_sid", in.MessageSid))

	replayKey := ""
	if in.MessageSid != "" {
		replayKey = "sms:" + in.MessageSid
	}
	if !h.firstDelivery(ctx, replayKey) {
		h.logger.Info("duplicate sms delivery ignored", "message_sid", in.MessageSid)
		messaging.WriteTwiML(w, "")
		return
	}
	claimed = replayKey

	res, err := h.processor.Process(ctx, Reply{
		Channel:    ChannelSMS,
		Sender:     in.From,
		Body:       in.Body,
		ExternalID: in.MessageSid,
	}, PhoneResolver{Finder: h.finder})
	if err != nil {
		kind := KindOf(err)
		if kind == KindInternal {
			h.logger.Error("sms reply failed", "error", err, "message_sid", in.MessageSid, "stack", string(debug.Stack()))
			h.release(ctx, replayKey)
		}
		messaging.WriteTwiML(w, smsMessageFor(kind))
		return
	}
	messaging.WriteTwiML(w, h.confirmation(res))
}

func smsMessageFor(kind Kind) string {
	switch kind {
	case KindProviderNotFound:
		return smsProviderNotFound
	case KindNoRecentLead:
		return smsNoRecentLead
	case KindUnknownKeyword:
		return KeywordHelp
	default:
		return smsInternalError
	}
}

func (h *Handler) confirmation(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead updated! %s (%s) - Status: %s", res.Lead.FullName, res.Lead.ZIP, res.Lead.Status)
	if o := res.Rule.Intent.Outcome; o != "" {
		fmt.Fprintf(&b, ", Outcome: %s", o)
	}
	switch res.Rule.Intent.Outcome {
	case leads.OutcomeOutsideServiceArea:
		fmt.Fprintf(&b, "\n\nTip: Update your service radius in your dashboard to avoid leads outside your area: %s", h.cfg.DashboardURL)
	case leads.OutcomeNoAvailability:
		b.WriteString("\n\nTip: Pause lead notifications in your dashboard when you're fully booked to avoid missed opportunities.")
	}
	return b.String()
}

// SMSFallback handles POST /webhooks/sms-fallback, which Twilio calls when
// the primary webhook fails. It only logs and apologizes.
func (h *Handler) SMSFallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("sms fallback handler panic", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			messaging.WriteTwiML(w, smsSystemError)
		}
	}()

	in, err := messaging.ParseInboundSMS(r)
	if err != nil {
		h.logger.Error("failed to parse twilio fallback", "error", err)
		messaging.WriteTwiML(w, smsSystemError)
		return
	}
	h.logger.Error("sms webhook fallback triggered",
		"error_code", in.ErrorCode,
		"error_message", in.ErrorMessage,
		"from", in.From,
		"message_sid", in.MessageSid,
	)
	h.metrics.ObserveReply(string(ChannelSMS), "fallback")

	msg := "We're experiencing technical difficulties processing your reply. Please try again in a few moments, or contact support"
	if h.cfg.SupportEmail != "" {
		msg += " at " + h.cfg.SupportEmail
	} else {
		msg += "."
	}
	messaging.WriteTwiML(w, msg)
}

var messageIDHeader = regexp.MustCompile(`(?im)^message-id:\s*(\S+)`)

// EmailReply handles POST /webhooks/email-reply (SendGrid Inbound Parse).
func (h *Handler) EmailReply(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracer.Start(r.Context(), "replies.webhook.email", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	var claimed string
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("email reply handler panic", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			h.release(ctx, claimed)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
		}
		h.metrics.ObserveWebhookLatency(string(ChannelEmail), time.Since(start).Seconds())
	}()

	err := r.ParseMultipartForm(maxEmailFormBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		h.logger.Warn("failed to parse inbound email form", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid form data"})
		return
	}

	from := r.FormValue("from")
	subject := r.FormValue("subject")
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		if body := r.FormValue("html"); body != "" {
			text = HTMLToText(body)
		}
	}

	externalID := ""
	if m := messageIDHeader.FindStringSubmatch(r.FormValue("headers")); m != nil {
		externalID = strings.Trim(m[1], "<>")
	}
	replayKey := ""
	if externalID != "" {
		replayKey = "email:" + externalID
	}
	if !h.firstDelivery(ctx, replayKey) {
		h.logger.Info("duplicate email delivery ignored", "message_id", externalID)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "duplicate": true})
		return
	}
	claimed = replayKey

	res, err := h.processor.Process(ctx, Reply{
		Channel:    ChannelEmail,
		Sender:     from,
		Subject:    subject,
		Body:       text,
		ExternalID: externalID,
	}, EmailResolver{Finder: h.finder})
	if err != nil {
		kind := KindOf(err)
		if kind == KindInternal {
			h.logger.Error("email reply failed", "error", err, "stack", string(debug.Stack()))
			h.release(ctx, replayKey)
		}
		status, msg := emailErrorFor(kind)
		writeJSON(w, status, map[string]any{"success": false, "error": msg})
		return
	}

	var outcome any
	if o := res.Rule.Intent.Outcome; o != "" {
		outcome = o
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"leadId":  res.Lead.ID,
		"action":  res.Rule.Intent.Action,
		"outcome": outcome,
		"status":  res.Lead.Status,
	})
}

func emailErrorFor(kind Kind) (int, string) {
	switch kind {
	case KindProviderNotFound:
		return http.StatusNotFound, "Provider not found"
	case KindNoRecentLead:
		return http.StatusNotFound, "No recent lead found"
	case KindUnknownKeyword:
		return http.StatusBadRequest, "No recognized keyword found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// firstDelivery consults the replay guard. Guard failures let the delivery
// through.
func (h *Handler) firstDelivery(ctx context.Context, key string) bool {
	if h.replay == nil || key == "" {
		return true
	}
	first, err := h.replay.Claim(ctx, key)
	if err != nil {
		h.logger.Warn("replay guard unavailable", "error", err, "key", key)
		return true
	}
	return first
}

func (h *Handler) release(ctx context.Context, key string) {
	if h.replay == nil || key == "" {
		return
	}
	if err := h.replay.Release(ctx, key); err != nil {
		h.logger.Warn("replay guard release failed", "error", err, "key", key)
	}
}

func (h *Handler) webhookURL(r *http.Request) string {
	if base := strings.TrimRight(h.cfg.PublicBaseURL, "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	return messaging.BuildAbsoluteURL(r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
