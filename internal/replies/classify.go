package replies

import (
	"regexp"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/internal/leads"
)

// KeywordHelp lists the keywords providers can reply with.
const KeywordHelp = "Keywords: CLAIMED, CALLED, BOOKED, COMPLETED, NO ANSWER, VOICEMAIL, DECLINED, NOT INTERESTED, WRONG NUMBER, DUPLICATE, TOO FAR, UNAVAILABLE, WRONG SERVICE, CALLBACK"

// Intent is the lifecycle change a reply asks for.
type Intent struct {
	Action  leads.Action
	Outcome leads.Outcome
}

// Rule pairs a predicate over uppercased reply text with the intent it selects.
type Rule struct {
	Name   string
	Match  func(upper string) bool
	Intent Intent
}

func containsAny(needles ...string) func(string) bool {
	return func(upper string) bool {
		for _, n := range needles {
			if strings.Contains(upper, n) {
				return true
			}
		}
		return false
	}
}

func outcome(o leads.Outcome) Intent {
	return Intent{Action: leads.ActionUpdateOutcome, Outcome: o}
}

// Rules are evaluated in order and the first match wins. Matching is by
// substring, so order decides overlaps: "CALL" shadows "CALLBACK" and
// "BOOKED" shadows "FULLY BOOKED".
var Rules = []Rule{
	{Name: "claim", Match: containsAny("CLAIM"), Intent: Intent{Action: leads.ActionClaim}},
	{Name: "contact", Match: containsAny("CALL"), Intent: Intent{Action: leads.ActionContact}},
	{Name: "booked", Match: containsAny("BOOKED", "APPOINTMENT"), Intent: outcome(leads.OutcomeAppointmentBooked)},
	{Name: "completed", Match: containsAny("COMPLETED", "DONE"), Intent: Intent{Action: leads.ActionComplete, Outcome: leads.OutcomeAppointmentCompleted}},
	{Name: "no_answer", Match: containsAny("NO ANSWER", "NOANSWER"), Intent: outcome(leads.OutcomeNoAnswer)},
	{Name: "voicemail", Match: containsAny("VOICEMAIL", "VM"), Intent: outcome(leads.OutcomeVoicemail)},
	{Name: "declined", Match: containsAny("DECLINED"), Intent: outcome(leads.OutcomeDeclined)},
	{Name: "not_interested", Match: containsAny("NOT INTERESTED"), Intent: outcome(leads.OutcomeNotInterested)},
	{Name: "wrong_number", Match: containsAny("WRONG NUMBER"), Intent: outcome(leads.OutcomeWrongNumber)},
	{Name: "duplicate", Match: containsAny("DUPLICATE"), Intent: outcome(leads.OutcomeDuplicate)},
	{Name: "outside_area", Match: containsAny("TOO FAR", "DISTANCE", "OUTSIDE AREA", "OUT OF AREA"), Intent: outcome(leads.OutcomeOutsideServiceArea)},
	{Name: "no_availability", Match: containsAny("UNAVAILABLE", "BOOKED UP", "NO AVAILABILITY", "FULLY BOOKED"), Intent: outcome(leads.OutcomeNoAvailability)},
	{Name: "wrong_service", Match: containsAny("WRONG SERVICE", "DIFFERENT SERVICE", "NOT OUR SERVICE"), Intent: outcome(leads.OutcomeWrongService)},
	{Name: "callback", Match: containsAny("CALLBACK", "CALL BACK"), Intent: outcome(leads.OutcomeScheduledCallback)},
}

// Classify returns the first rule matching text.
func Classify(text string) (Rule, bool) {
	return classifyWith(Rules, text)
}

func classifyWith(rules []Rule, text string) (Rule, bool) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	if upper == "" {
		return Rule{}, false
	}
	for _, r := range rules {
		if r.Match(upper) {
			return r, true
		}
	}
	return Rule{}, false
}

var (
	leadRefPattern      = regexp.MustCompile(`(?:LEAD\s*ID:?\s*|#)?\b([A-Z0-9]{20,30})\b`)
	prefixedLeadPattern = regexp.MustCompile(`(?:LEAD\s*ID:?\s*|#)([A-Z0-9]{20,30})\b`)
)

// ExtractLeadReference finds an explicit lead token in free text: a run of
// 20 to 30 letters and digits, optionally prefixed by "LEAD ID:" or "#".
// A prefixed token wins over an earlier bare run. The token is returned
// lowercased, the form lead ids are stored in.
func ExtractLeadReference(text string) (string, bool) {
	upper := strings.ToUpper(text)
	m := prefixedLeadPattern.FindStringSubmatch(upper)
	if m == nil {
		m = leadRefPattern.FindStringSubmatch(upper)
	}
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// withoutLeadReference blanks lead tokens so their characters cannot
// trigger keywords ("...VM..." inside an id).
func withoutLeadReference(text string) string {
	return leadRefPattern.ReplaceAllString(strings.ToUpper(text), " ")
}
