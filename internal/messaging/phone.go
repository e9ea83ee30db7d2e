package messaging

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizeE164 formats a phone number as E.164. Numbers libphonenumber
// rejects fall back to a digit heuristic for ten and eleven digit NANP input.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if number, err := phonenumbers.Parse(value, defaultRegion); err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.Format(number, phonenumbers.E164)
	}
	digits := DigitsOnly(value)
	switch {
	case digits == "":
		return ""
	case len(digits) == 10:
		return "+1" + digits
	default:
		return "+" + digits
	}
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SenderVariants returns the forms a stored phone field may take for an
// inbound sender: the raw value, the value with a leading +1 removed, and
// the bare digits. Duplicates and empty strings are dropped.
func SenderVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	candidates := []string{
		raw,
		strings.TrimPrefix(raw, "+1"),
		DigitsOnly(raw),
	}
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SamePhone reports whether two numbers normalize to the same E.164 value.
func SamePhone(a, b string) bool {
	na, nb := NormalizeE164(a), NormalizeE164(b)
	return na != "" && na == nb
}
