package notify

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
)

// LeadIDLine is the marker providers echo back so replies resolve to a lead.
func LeadIDLine(leadID string) string {
	return "LEAD ID: " + leadID
}

func leadSMSBody(l *leads.Lead) string {
	return fmt.Sprintf("New Lead: %s, ZIP %s, %s.\nCall: %s\n%s\nReply CLAIMED, CALLED or BOOKED to update.\nReply STOP to opt-out.",
		l.FullName, l.ZIP, l.Urgency, l.Phone, LeadIDLine(l.ID))
}

func leadEmail(l *leads.Lead, to, replyTo string) EmailMessage {
	body := fmt.Sprintf(`You have a new patient lead!

Name: %s
Phone: %s
Email: %s
Address: %s
City: %s
State: %s
ZIP: %s
Urgency: %s
Notes: %s

Lead Price: %s
%s

Please contact this patient as soon as possible.`,
		l.FullName, l.Phone, orDash(l.Email), orDash(l.Address1), l.City, l.State, l.ZIP,
		l.Urgency, orDash(l.Notes), formatPrice(l.PriceCents), LeadIDLine(l.ID))

	return EmailMessage{
		To:       to,
		ReplyTo:  replyTo,
		Subject:  fmt.Sprintf("New Patient Lead (%s) - %s, %s", l.Urgency, l.City, l.State),
		Body:     body,
		LeadID:   l.ID,
		Category: CategoryLeadRouted,
	}
}

func unservedEmail(l *leads.Lead, to string) EmailMessage {
	body := fmt.Sprintf(`A lead could not be routed to any provider.

Lead ID: %s
ZIP: %s
City: %s, %s
Urgency: %s

Consider recruiting providers in this area.`, l.ID, l.ZIP, l.City, l.State, l.Urgency)
	return EmailMessage{
		To:       to,
		Subject:  "Unserved lead: recruit provider in " + l.ZIP,
		Body:     body,
		LeadID:   l.ID,
		Category: CategoryAdmin,
	}
}

func paymentFailedEmail(p *providers.Provider, l *leads.Lead, reason, dashboardURL, to string) EmailMessage {
	body := fmt.Sprintf(`Your payment method was declined for a new lead, so the lead was routed to another provider.

Lead Details:
Location: %s, %s %s
Urgency: %s
Price: %s

Error: %s

Please update your payment method to avoid missing future leads:
%s

Common reasons for declined payments:
- Insufficient funds
- Expired card
- Card needs to be activated for online transactions
- Billing address mismatch`, l.City, l.State, l.ZIP, l.Urgency, formatPrice(l.PriceCents), reason, dashboardURL)
	return EmailMessage{
		To:       to,
		ToName:   p.Name,
		Subject:  fmt.Sprintf("Payment Failed - Lead Missed in %s, %s", l.City, l.State),
		Body:     body,
		LeadID:   l.ID,
		Category: CategoryPaymentFailed,
	}
}

func formatPrice(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

// textToHTML renders a plain-text body as escaped HTML paragraphs.
func textToHTML(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}
