package dedupe

import (
	"sort"
	"time"
)

// Listing is the slice of a provider row duplicate detection looks at.
type Listing struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Website      string    `json:"website,omitempty"`
	Phone        string    `json:"-"`
	Email        string    `json:"-"`
	PrimaryCity  string    `json:"-"`
	PrimaryState string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Location renders "City, ST", or just the state when the city is unknown.
func (l Listing) Location() string {
	if l.PrimaryCity != "" && l.PrimaryState != "" {
		return l.PrimaryCity + ", " + l.PrimaryState
	}
	return l.PrimaryState
}

// Group is a set of listings believed to be the same business. Listings are
// ordered newest first; the first one is the survivor.
type Group struct {
	Key      string
	Listings []Listing
}

// Kept returns the listing cleanup preserves.
func (g Group) Kept() Listing {
	return g.Listings[0]
}

// Losers returns the listings cleanup removes.
func (g Group) Losers() []Listing {
	return g.Listings[1:]
}

// FindGroups groups listings by normalized name, then adds website groups
// whose members do not already share a name. Name groups come first, each
// block sorted by key.
func FindGroups(listings []Listing) []Group {
	ordered := make([]Listing, len(listings))
	copy(ordered, listings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	byName := map[string][]Listing{}
	byWebsite := map[string][]Listing{}
	for _, l := range ordered {
		if name := NormalizeName(l.Name); name != "" {
			byName[name] = append(byName[name], l)
		}
		if site := NormalizeWebsite(l.Website); site != "" {
			byWebsite[site] = append(byWebsite[site], l)
		}
	}

	groups := collect(byName, "", func([]Listing) bool { return true })
	groups = append(groups, collect(byWebsite, "website:", func(ls []Listing) bool {
		first := NormalizeName(ls[0].Name)
		for _, l := range ls[1:] {
			if NormalizeName(l.Name) != first {
				return true
			}
		}
		return false
	})...)
	return groups
}

func collect(m map[string][]Listing, prefix string, keep func([]Listing) bool) []Group {
	keys := make([]string, 0, len(m))
	for k, ls := range m {
		if len(ls) > 1 && keep(ls) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, Group{Key: prefix + k, Listings: m[k]})
	}
	return out
}
