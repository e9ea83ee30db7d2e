package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

var twilioSendTracer = otel.Tracer("leadrouter.internal.messaging.twilio_send")

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSSender delivers a single outbound text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID          string
	authToken           string
	from                string
	messagingServiceSID string
	baseURL             string
	httpClient          *http.Client
	logger              *logging.Logger
	backoff             func(attempt int) time.Duration
}

// TwilioOption customizes a TwilioSender.
type TwilioOption func(*TwilioSender)

// WithMessagingService sends through a messaging service instead of a fixed number.
func WithMessagingService(sid string) TwilioOption {
	return func(s *TwilioSender) { s.messagingServiceSID = strings.TrimSpace(sid) }
}

// WithBaseURL points the sender at a different API host.
func WithBaseURL(base string) TwilioOption {
	return func(s *TwilioSender) { s.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) TwilioOption {
	return func(s *TwilioSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, opts ...TwilioOption) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ SMSSender = (*TwilioSender)(nil)

// Send dispatches one SMS, retrying transport errors, 429s and 5xx up to
// three attempts.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	to = NormalizeE164(to)
	if to == "" {
		return errors.New("messaging: to required")
	}
	if s.from == "" && s.messagingServiceSID == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("leadrouter.sms.to", to))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("Body", body)
	if s.messagingServiceSID != "" {
		payload.Set("MessagingServiceSid", s.messagingServiceSID)
	} else {
		payload.Set("From", s.from)
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("twilio sms sent", "to", to, "sid", messageSID(respBody))
				return nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				return ctx.Err()
			case <-time.After(s.backoff(attempt)):
			}
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}

func messageSID(body []byte) string {
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.SID
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// LogSender records outbound SMS in the log instead of sending them.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender builds a sender for environments without Twilio credentials.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) error {
	s.logger.Info("sms send skipped (no twilio credentials)", "to", NormalizeE164(to), "body_len", len(body))
	return nil
}
