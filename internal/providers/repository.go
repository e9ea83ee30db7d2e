package providers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows admin listings.
type ListFilter struct {
	Status Status
	Limit  int
}

// Repository defines the interface for provider storage
type Repository interface {
	Create(ctx context.Context, req *CreateProviderRequest) (*Provider, error)
	GetByID(ctx context.Context, id string) (*Provider, error)
	List(ctx context.Context, filter ListFilter) ([]*Provider, error)
	// FindByPhone returns the first provider whose public phone equals any variant.
	FindByPhone(ctx context.Context, variants []string) (*Provider, error)
	// FindByEmail matches the claim or public email, exactly or as a case-insensitive substring.
	FindByEmail(ctx context.Context, addr string) (*Provider, error)
	// ListMatchable returns phlebotomy-flagged providers with their coverage rows.
	ListMatchable(ctx context.Context) ([]*Provider, error)
	UpdateSettings(ctx context.Context, id string, settings Settings) (*Provider, error)
	SetEligibility(ctx context.Context, id string, eligible bool) (*Provider, error)
	// Delete removes providers and their coverage rows.
	Delete(ctx context.Context, ids []string) (int, error)
}

// InMemoryRepository keeps providers in a map. It backs tests and local runs.
type InMemoryRepository struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		providers: make(map[string]*Provider),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Put stores a provider as-is, keeping its ID and timestamps. Used for seeding.
func (r *InMemoryRepository) Put(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := clone(p)
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Slug == "" {
		cp.Slug = Slugify(cp.Name)
	}
	r.providers[cp.ID] = cp
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateProviderRequest) (*Provider, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	slug := Slugify(req.Name)
	for _, existing := range r.providers {
		if existing.Slug == slug {
			return nil, ErrSlugTaken
		}
	}
	now := r.now()
	p := &Provider{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Slug:               slug,
		Email:              req.Email,
		Phone:              req.Phone,
		ClaimEmail:         req.ClaimEmail,
		NotificationEmail:  req.NotificationEmail,
		Website:            req.Website,
		PrimaryCity:        req.PrimaryCity,
		PrimaryState:       req.PrimaryState,
		ZIPCodes:           req.ZIPCodes,
		ServiceRadiusMiles: req.ServiceRadiusMiles,
		Nationwide:         req.Nationwide,
		Coverage:           req.Coverage,
		EligibleForLeads:   req.EligibleForLeads,
		IsPhlebotomy:       req.IsPhlebotomy,
		NotifySMS:          req.NotifySMS,
		NotifyEmail:        req.NotifyEmail,
		Schedule:           req.Schedule,
		Status:             req.Status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.providers[p.ID] = clone(p)
	return p, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return clone(p), nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Provider
	for _, p := range r.sorted() {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, clone(p))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *InMemoryRepository) FindByPhone(ctx context.Context, variants []string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.sorted() {
		for _, v := range variants {
			if v != "" && p.Phone == v {
				return clone(p), nil
			}
		}
	}
	return nil, ErrProviderNotFound
}

func (r *InMemoryRepository) FindByEmail(ctx context.Context, addr string) (*Provider, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrProviderNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ordered := r.sorted()
	for _, p := range ordered {
		if p.ClaimEmail == addr || p.Email == addr {
			return clone(p), nil
		}
	}
	needle := strings.ToLower(addr)
	for _, p := range ordered {
		if containsFold(p.ClaimEmail, needle) || containsFold(p.Email, needle) {
			return clone(p), nil
		}
	}
	return nil, ErrProviderNotFound
}

func (r *InMemoryRepository) ListMatchable(ctx context.Context) ([]*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Provider
	for _, p := range r.sorted() {
		if p.IsPhlebotomy {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateSettings(ctx context.Context, id string, settings Settings) (*Provider, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	p.Schedule = settings.Schedule
	p.Schedule.Days = append([]string(nil), settings.Schedule.Days...)
	p.ServiceRadiusMiles = settings.ServiceRadiusMiles
	p.UpdatedAt = r.now()
	return clone(p), nil
}

func (r *InMemoryRepository) SetEligibility(ctx context.Context, id string, eligible bool) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	p.EligibleForLeads = eligible
	p.UpdatedAt = r.now()
	return clone(p), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := r.providers[id]; ok {
			delete(r.providers, id)
			removed++
		}
	}
	return removed, nil
}

// sorted returns providers oldest first, matching the SQL ORDER BY created_at, id.
func (r *InMemoryRepository) sorted() []*Provider {
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsFold(field, lowerNeedle string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowerNeedle)
}

func clone(p *Provider) *Provider {
	cp := *p
	cp.Schedule.Days = append([]string(nil), p.Schedule.Days...)
	if p.Coverage != nil {
		cp.Coverage = make([]Coverage, len(p.Coverage))
		for i, c := range p.Coverage {
			cp.Coverage[i] = Coverage{State: c.State, Cities: append([]string(nil), c.Cities...)}
		}
	}
	return &cp
}
