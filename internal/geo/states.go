package geo

import "strings"

var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

var stateAbbrByName = func() map[string]string {
	out := make(map[string]string, len(stateNames))
	for abbr, name := range stateNames {
		out[strings.ToLower(name)] = abbr
	}
	return out
}()

// NormalizeState resolves an abbreviation or full state name ("mi", "Michigan")
// to its two letter abbreviation. ok is false for anything else.
func NormalizeState(input string) (abbr string, ok bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	upper := strings.ToUpper(trimmed)
	if _, found := stateNames[upper]; found {
		return upper, true
	}
	abbr, ok = stateAbbrByName[strings.ToLower(strings.Join(strings.Fields(trimmed), " "))]
	return abbr, ok
}

// StateName returns the full name for an abbreviation, or the input unchanged.
func StateName(abbr string) string {
	if name, ok := stateNames[strings.ToUpper(strings.TrimSpace(abbr))]; ok {
		return name
	}
	return abbr
}

// SameState reports whether two state inputs resolve to the same state.
func SameState(a, b string) bool {
	na, okA := NormalizeState(a)
	nb, okB := NormalizeState(b)
	if okA && okB {
		return na == nb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) && strings.TrimSpace(a) != ""
}

// NormalizeCity lowercases and collapses whitespace so city names compare exactly.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}
