package geo

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// NormalizeZIP strips spaces and dashes and keeps the first five characters,
// so "48126-1234" and "48126 1234" both become "48126".
func NormalizeZIP(zip string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(zip)
	if len(cleaned) > 5 {
		cleaned = cleaned[:5]
	}
	return cleaned
}

// ZIPMatch describes how a provider ZIP list relates to one lead ZIP.
type ZIPMatch struct {
	Covered bool
	// DistanceMiles is the shortest centroid distance between an exact list entry
	// and the lead ZIP. Only meaningful when DistanceKnown is set.
	DistanceMiles float64
	DistanceKnown bool
}

type zipEntryKind int

const (
	zipExact zipEntryKind = iota
	zipPrefix
	zipRange
)

type zipEntry struct {
	kind  zipEntryKind
	value string
	end   string
}

// parseZIPList splits a comma delimited ZIP list into entries. Entries may be an
// exact ZIP, a wildcard prefix ("902*") or an inclusive range ("90210-90220").
// A ZIP+4 such as "48126-1234" is an exact entry.
func parseZIPList(list string) []zipEntry {
	var out []zipEntry
	for _, raw := range strings.Split(list, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		switch {
		case strings.Contains(entry, "*"):
			prefix := strings.TrimSpace(strings.ReplaceAll(entry, "*", ""))
			if prefix != "" {
				out = append(out, zipEntry{kind: zipPrefix, value: prefix})
			}
		case isZIPRange(entry):
			parts := strings.SplitN(entry, "-", 2)
			out = append(out, zipEntry{kind: zipRange, value: strings.TrimSpace(parts[0]), end: strings.TrimSpace(parts[1])})
		default:
			out = append(out, zipEntry{kind: zipExact, value: NormalizeZIP(entry)})
		}
	}
	return out
}

// ZIPListCovers checks a provider ZIP list against a lead ZIP. Exact entries also
// cover every ZIP whose centroid lies within radiusMiles of the entry's centroid.
// Unknown centroids fall back to literal matching only.
func ZIPListCovers(ctx context.Context, list, leadZIP string, radiusMiles float64, centroids CentroidStore) (ZIPMatch, error) {
	var match ZIPMatch
	zip := NormalizeZIP(leadZIP)
	if zip == "" {
		return match, nil
	}
	entries := parseZIPList(list)
	if len(entries) == 0 {
		return match, nil
	}

	var (
		leadPoint Point
		leadKnown bool
	)
	if centroids != nil {
		p, ok, err := centroids.Lookup(ctx, zip)
		if err != nil {
			return match, fmt.Errorf("geo: lookup lead zip %s: %w", zip, err)
		}
		leadPoint, leadKnown = p, ok
	}

	best := math.MaxFloat64
	for _, entry := range entries {
		switch entry.kind {
		case zipPrefix:
			if strings.HasPrefix(zip, entry.value) {
				match.Covered = true
			}
		case zipRange:
			if zip >= entry.value && zip <= entry.end {
				match.Covered = true
			}
		case zipExact:
			if entry.value == zip {
				match.Covered = true
				best = 0
				continue
			}
			if !leadKnown {
				continue
			}
			p, ok, err := centroids.Lookup(ctx, entry.value)
			if err != nil {
				return match, fmt.Errorf("geo: lookup provider zip %s: %w", entry.value, err)
			}
			if !ok {
				continue
			}
			d := Distance(p, leadPoint)
			if d < best {
				best = d
			}
			if radiusMiles > 0 && d <= radiusMiles {
				match.Covered = true
			}
		}
	}
	if best != math.MaxFloat64 {
		match.DistanceMiles = best
		match.DistanceKnown = true
	}
	return match, nil
}

func isZIPRange(entry string) bool {
	parts := strings.SplitN(entry, "-", 2)
	if len(parts) != 2 {
		return false
	}
	return isFiveDigits(strings.TrimSpace(parts[0])) && isFiveDigits(strings.TrimSpace(parts[1]))
}

func isFiveDigits(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
