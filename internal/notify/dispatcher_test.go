package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSMSSender struct {
	sent    []struct{ to, body string }
	callErr error
}

func (m *mockSMSSender) Send(ctx context.Context, to, body string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:         "cs8f3k2v1n9g00abcdef",
		FullName:   "Jane Patient",
		Phone:      "313-555-0142",
		City:       "Dearborn",
		State:      "MI",
		ZIP:        "48126",
		Urgency:    leads.UrgencyStat,
		PriceCents: 5000,
	}
}

func testProvider() *providers.Provider {
	return &providers.Provider{
		ID:          "prov-1",
		Name:        "Metro Draws",
		Phone:       "+13135550100",
		Email:       "public@metrodraws.com",
		ClaimEmail:  "owner@metrodraws.com",
		NotifySMS:   true,
		NotifyEmail: true,
	}
}

func newTestDispatcher(sms *mockSMSSender, email *mockEmailSender) *Dispatcher {
	cfg := Config{
		AdminEmail:   "admin@example.com",
		DashboardURL: "https://example.com/dashboard",
		LeadReplyTo:  "replies@leads.example.com",
	}
	return NewDispatcher(sms, email, cfg, metrics.New(prometheus.NewRegistry()), nil)
}

func TestNotifyLeadRouted_BothChannels(t *testing.T) {
	sms := &mockSMSSender{}
	email := &mockEmailSender{}
	d := newTestDispatcher(sms, email)

	res := d.NotifyLeadRouted(context.Background(), testProvider(), testLead())

	assert.True(t, res.SMS.Sent())
	assert.True(t, res.Email.Sent())
	assert.True(t, res.Delivered())
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+13135550100", sms.sent[0].to)
	assert.Contains(t, sms.sent[0].body, "New Lead: Jane Patient, ZIP 48126, STAT.")
	assert.Contains(t, sms.sent[0].body, "LEAD ID: cs8f3k2v1n9g00abcdef")

	require.Len(t, email.sent, 1)
	msg := email.sent[0]
	assert.Equal(t, "owner@metrodraws.com", msg.To)
	assert.Equal(t, "New Patient Lead (STAT) - Dearborn, MI", msg.Subject)
	assert.Contains(t, msg.Body, "LEAD ID: cs8f3k2v1n9g00abcdef")
	assert.Contains(t, msg.Body, "Lead Price: $50.00")
	assert.Contains(t, msg.Body, "Email: -")
	assert.Equal(t, "replies@leads.example.com", msg.ReplyTo)
	assert.Equal(t, "cs8f3k2v1n9g00abcdef", msg.LeadID)
	assert.Equal(t, CategoryLeadRouted, msg.Category)
}

func TestNotifyLeadRouted_NotificationEmailOverride(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(&mockSMSSender{}, email)
	p := testProvider()
	p.NotificationEmail = "dispatch@metrodraws.com"

	d.NotifyLeadRouted(context.Background(), p, testLead())

	require.Len(t, email.sent, 1)
	assert.Equal(t, "dispatch@metrodraws.com", email.sent[0].To)
}

func TestNotifyLeadRouted_ChannelSwitches(t *testing.T) {
	sms := &mockSMSSender{}
	email := &mockEmailSender{}
	d := newTestDispatcher(sms, email)
	p := testProvider()
	p.NotifySMS = false

	res := d.NotifyLeadRouted(context.Background(), p, testLead())

	assert.False(t, res.SMS.Attempted)
	assert.True(t, res.Email.Sent())
	assert.Empty(t, sms.sent)
}

func TestNotifyLeadRouted_FailuresAreIndependent(t *testing.T) {
	sms := &mockSMSSender{callErr: errors.New("twilio down")}
	email := &mockEmailSender{}
	d := newTestDispatcher(sms, email)

	res := d.NotifyLeadRouted(context.Background(), testProvider(), testLead())

	assert.True(t, res.SMS.Attempted)
	assert.Error(t, res.SMS.Err)
	assert.True(t, res.Email.Sent())
	assert.True(t, res.Delivered())
}

func TestNotifyLeadRouted_NoChannel(t *testing.T) {
	d := newTestDispatcher(&mockSMSSender{}, &mockEmailSender{})
	p := testProvider()
	p.Phone = ""
	p.Email, p.ClaimEmail = "", ""

	res := d.NotifyLeadRouted(context.Background(), p, testLead())

	assert.False(t, res.Delivered())
	assert.False(t, res.SMS.Attempted)
	assert.False(t, res.Email.Attempted)
}

func TestNotifyAdminUnserved(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(nil, email)

	require.NoError(t, d.NotifyAdminUnserved(context.Background(), testLead()))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "admin@example.com", email.sent[0].To)
	assert.Equal(t, "Unserved lead: recruit provider in 48126", email.sent[0].Subject)
	assert.Contains(t, email.sent[0].Body, "Lead ID: cs8f3k2v1n9g00abcdef")
}

func TestNotifyAdminUnserved_NoAdmin(t *testing.T) {
	d := NewDispatcher(nil, &mockEmailSender{}, Config{}, nil, nil)
	assert.ErrorIs(t, d.NotifyAdminUnserved(context.Background(), testLead()), ErrNoRecipient)
}

func TestNotifyAdmin(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(nil, email)

	require.NoError(t, d.NotifyAdmin(context.Background(), "New provider submission: Metro Draws", "Contact: Dana"))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "admin@example.com", email.sent[0].To)
	assert.Equal(t, "New provider submission: Metro Draws", email.sent[0].Subject)

	d = NewDispatcher(nil, nil, Config{AdminEmail: "admin@example.com"}, nil, nil)
	assert.ErrorIs(t, d.NotifyAdmin(context.Background(), "x", "y"), ErrNoRecipient)
}

func TestNotifyPaymentFailed(t *testing.T) {
	email := &mockEmailSender{}
	d := newTestDispatcher(nil, email)

	require.NoError(t, d.NotifyPaymentFailed(context.Background(), testProvider(), testLead(), "card_declined"))
	require.Len(t, email.sent, 1)
	msg := email.sent[0]
	assert.Equal(t, "owner@metrodraws.com", msg.To)
	assert.Equal(t, "Payment Failed - Lead Missed in Dearborn, MI", msg.Subject)
	assert.True(t, strings.Contains(msg.Body, "Error: card_declined"))
	assert.Contains(t, msg.Body, "https://example.com/dashboard")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$20.00", formatPrice(2000))
	assert.Equal(t, "$0.05", formatPrice(5))
}
