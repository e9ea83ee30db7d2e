package replies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text    string
		rule    string
		action  leads.Action
		outcome leads.Outcome
	}{
		{"CLAIMED", "claim", leads.ActionClaim, ""},
		{"claimed - calling now", "claim", leads.ActionClaim, ""},
		{"Called and got it BOOKED", "contact", leads.ActionContact, ""},
		{"calling", "contact", leads.ActionContact, ""},
		{"booked for friday", "booked", leads.ActionUpdateOutcome, leads.OutcomeAppointmentBooked},
		{"appointment set", "booked", leads.ActionUpdateOutcome, leads.OutcomeAppointmentBooked},
		{"fully booked", "booked", leads.ActionUpdateOutcome, leads.OutcomeAppointmentBooked},
		{"done", "completed", leads.ActionComplete, leads.OutcomeAppointmentCompleted},
		{"no answer", "no_answer", leads.ActionUpdateOutcome, leads.OutcomeNoAnswer},
		{"left vm", "voicemail", leads.ActionUpdateOutcome, leads.OutcomeVoicemail},
		{"Declined", "declined", leads.ActionUpdateOutcome, leads.OutcomeDeclined},
		{"not interested", "not_interested", leads.ActionUpdateOutcome, leads.OutcomeNotInterested},
		{"wrong number", "wrong_number", leads.ActionUpdateOutcome, leads.OutcomeWrongNumber},
		{"duplicate", "duplicate", leads.ActionUpdateOutcome, leads.OutcomeDuplicate},
		{"too far for us", "outside_area", leads.ActionUpdateOutcome, leads.OutcomeOutsideServiceArea},
		{"out of area", "outside_area", leads.ActionUpdateOutcome, leads.OutcomeOutsideServiceArea},
		{"unavailable this week", "no_availability", leads.ActionUpdateOutcome, leads.OutcomeNoAvailability},
		{"wrong service", "wrong_service", leads.ActionUpdateOutcome, leads.OutcomeWrongService},
		{"call back tomorrow", "contact", leads.ActionContact, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rule, ok := Classify(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.rule, rule.Name)
			assert.Equal(t, tt.action, rule.Intent.Action)
			assert.Equal(t, tt.outcome, rule.Intent.Outcome)
		})
	}
}

func TestClassifyNoKeyword(t *testing.T) {
	for _, text := range []string{"", "   ", "hello", "thanks!"} {
		_, ok := Classify(text)
		assert.False(t, ok, text)
	}
}

func TestClassifyCallbackReachableWithoutContactRule(t *testing.T) {
	rules := make([]Rule, 0, len(Rules))
	for _, r := range Rules {
		if r.Name != "contact" {
			rules = append(rules, r)
		}
	}
	rule, ok := classifyWith(rules, "callback at 5")
	require.True(t, ok)
	assert.Equal(t, leads.OutcomeScheduledCallback, rule.Intent.Outcome)
}

func TestExtractLeadReference(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"CLAIMED #CS8F3K2V1N9G00ABCDEF", "cs8f3k2v1n9g00abcdef", true},
		{"claimed #cs8f3k2v1n9g00abcdef", "cs8f3k2v1n9g00abcdef", true},
		{"Re: New Patient Lead\nLEAD ID: cs8f3k2v1n9g00abcdef\nbooked", "cs8f3k2v1n9g00abcdef", true},
		{"booked cs8f3k2v1n9g00abcdef", "cs8f3k2v1n9g00abcdef", true},
		{"Ticket ZX81TRACKING0000000001 booked\nLEAD ID: cs8f3k2v1n9g00abcdef", "cs8f3k2v1n9g00abcdef", true},
		{"order 1Z999AA10123456784XYZ claimed #cs8f3k2v1n9g00abcdef", "cs8f3k2v1n9g00abcdef", true},
		{"CLAIMED", "", false},
		{"CLAIMED #cs8f3k2v1n9g00abc", "", false},
		{"call me at 3135550101", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractLeadReference(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestLeadTokenDoesNotTriggerKeywords(t *testing.T) {
	_, ok := Classify(withoutLeadReference("thanks #ABCVMDONE0123456789XY"))
	assert.False(t, ok)

	rule, ok := Classify(withoutLeadReference("CLAIMED #ABCVMDONE0123456789XY"))
	require.True(t, ok)
	assert.Equal(t, "claim", rule.Name)
}

func TestExtractEmailAddress(t *testing.T) {
	assert.Equal(t, "owner@metrodraws.com", ExtractEmailAddress(`"Metro Draws" <owner@metrodraws.com>`))
	assert.Equal(t, "owner@metrodraws.com", ExtractEmailAddress("owner@metrodraws.com"))
	assert.Equal(t, "owner@metrodraws.com", ExtractEmailAddress("reply from owner@metrodraws.com today"))
	assert.Equal(t, "not an address", ExtractEmailAddress("  not an address "))
	assert.Equal(t, "", ExtractEmailAddress(""))
}

func TestHTMLToText(t *testing.T) {
	body := `<html><head><title>x</title><style>p{color:red}</style></head>
<body><div>BOOKED   for <b>Friday</b></div><p>Thanks,<br>Metro</p><script>alert(1)</script></body></html>`
	assert.Equal(t, "BOOKED for Friday\nThanks,\nMetro", HTMLToText(body))
	assert.Equal(t, "", HTMLToText(""))
	assert.Equal(t, "a & b", HTMLToText("a &amp; b"))
}
