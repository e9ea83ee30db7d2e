package dedupe

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/internal/messaging"
)

var (
	businessSuffix     = regexp.MustCompile(`[\s,]+(llc|inc|corp|ltd|co)\.?$`)
	trailingPunct      = regexp.MustCompile(`[,.]+$`)
	schemeAndWWWPrefix = regexp.MustCompile(`^(https?://)?(www\.)?`)
)

// NormalizeName folds case and whitespace and strips trailing punctuation
// and business suffixes, so "ACME LABS, LLC" and "Acme Labs" compare equal.
func NormalizeName(name string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for {
		next := trailingPunct.ReplaceAllString(n, "")
		next = strings.TrimSpace(businessSuffix.ReplaceAllString(next, ""))
		if next == n {
			return n
		}
		n = next
	}
}

// NormalizeWebsite reduces a URL to its lowercased host without "www.".
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	if u, err := url.Parse(candidate); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return schemeAndWWWPrefix.ReplaceAllString(strings.ToLower(raw), "")
}

// NormalizePhone returns an E.164 form so formatting differences do not
// hide a match.
func NormalizePhone(raw string) string {
	return messaging.NormalizeE164(raw)
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
