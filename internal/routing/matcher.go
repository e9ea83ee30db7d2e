package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mobilephlebotomy/leadrouter/internal/geo"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
)

// Tier is a match precedence bucket. Lower values route first.
type Tier int

const (
	TierCity Tier = iota
	TierRegional
	TierStatewide
	TierNationwide
)

func (t Tier) String() string {
	switch t {
	case TierCity:
		return "city"
	case TierRegional:
		return "regional"
	case TierStatewide:
		return "statewide"
	case TierNationwide:
		return "nationwide"
	default:
		return "unknown"
	}
}

// Query is the geography of one lead.
type Query struct {
	City  string `json:"city"`
	State string `json:"state"`
	ZIP   string `json:"zip"`
}

// Candidate is an eligible provider with the reason it matched.
type Candidate struct {
	Provider      *providers.Provider `json:"provider"`
	Tier          Tier                `json:"-"`
	TierName      string              `json:"tier"`
	DistanceMiles float64             `json:"distance_miles,omitempty"`
	DistanceKnown bool                `json:"distance_known"`
}

// ProviderSource lists the providers that may be matched.
type ProviderSource interface {
	ListMatchable(ctx context.Context) ([]*providers.Provider, error)
}

// Matcher turns a lead geography into an ordered list of eligible providers.
type Matcher struct {
	source    ProviderSource
	centroids geo.CentroidStore
	now       func() time.Time
	location  *time.Location
}

// MatcherOption customizes a Matcher.
type MatcherOption func(*Matcher)

// WithClock injects the clock used for schedule checks.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDefaultLocation sets the zone used for schedules that declare none.
func WithDefaultLocation(loc *time.Location) MatcherOption {
	return func(m *Matcher) {
		if loc != nil {
			m.location = loc
		}
	}
}

func NewMatcher(source ProviderSource, centroids geo.CentroidStore, opts ...MatcherOption) *Matcher {
	if source == nil {
		panic("routing: provider source required")
	}
	m := &Matcher{
		source:    source,
		centroids: centroids,
		now:       time.Now,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns eligible candidates ordered by tier, then known distance,
// then provider age, then id.
func (m *Matcher) Match(ctx context.Context, q Query) ([]Candidate, error) {
	all, err := m.source.ListMatchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("routing: list providers: %w", err)
	}
	now := m.now().In(m.location)

	var out []Candidate
	for _, p := range all {
		if !Eligible(p, now) {
			continue
		}
		c, ok, err := m.classify(ctx, p, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sortCandidates(out)
	return out, nil
}

// Eligible applies the non-geographic gates: phlebotomy flag, lead
// eligibility and the operating schedule at now.
func Eligible(p *providers.Provider, now time.Time) bool {
	if p == nil || !p.IsPhlebotomy || !p.EligibleForLeads {
		return false
	}
	return providers.IsOperating(now, p.Schedule)
}

func (m *Matcher) classify(ctx context.Context, p *providers.Provider, q Query) (Candidate, bool, error) {
	c := Candidate{Provider: p, Tier: TierNationwide}
	matched := false
	better := func(t Tier) {
		if !matched || t < c.Tier {
			c.Tier = t
		}
		matched = true
	}

	city := geo.NormalizeCity(q.City)
	if city != "" && geo.NormalizeCity(p.PrimaryCity) == city &&
		(strings.TrimSpace(p.PrimaryState) == "" || geo.SameState(p.PrimaryState, q.State)) {
		better(TierCity)
	}
	for _, cov := range p.Coverage {
		if !geo.SameState(cov.State, q.State) {
			continue
		}
		if len(cov.Cities) == 0 {
			better(TierStatewide)
			continue
		}
		// A row that names cities covers only those cities.
		if city != "" && containsCity(cov.Cities, city) {
			better(TierCity)
		}
	}

	if strings.TrimSpace(p.ZIPCodes) != "" && q.ZIP != "" {
		zm, err := geo.ZIPListCovers(ctx, p.ZIPCodes, q.ZIP, p.RadiusMiles(), m.centroids)
		if err != nil {
			return Candidate{}, false, fmt.Errorf("routing: provider %s: %w", p.ID, err)
		}
		if zm.DistanceKnown {
			c.DistanceMiles, c.DistanceKnown = zm.DistanceMiles, true
		}
		if zm.Covered {
			better(TierRegional)
		}
	}

	if p.Nationwide {
		better(TierNationwide)
	}
	c.TierName = c.Tier.String()
	return c, matched, nil
}

func containsCity(cities []string, normalized string) bool {
	for _, c := range cities {
		if geo.NormalizeCity(c) == normalized {
			return true
		}
	}
	return false
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.DistanceKnown != b.DistanceKnown {
			return a.DistanceKnown
		}
		if a.DistanceKnown && a.DistanceMiles != b.DistanceMiles {
			return a.DistanceMiles < b.DistanceMiles
		}
		if !a.Provider.CreatedAt.Equal(b.Provider.CreatedAt) {
			return a.Provider.CreatedAt.Before(b.Provider.CreatedAt)
		}
		return a.Provider.ID < b.Provider.ID
	})
}
