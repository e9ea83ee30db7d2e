package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, filter ListFilter) ([]*Lead, error)
	// GetForProvider only returns the lead when it is routed to providerID.
	GetForProvider(ctx context.Context, id, providerID string) (*Lead, error)
	// MostRecentForProvider returns the latest lead routed to providerID at or after since.
	MostRecentForProvider(ctx context.Context, providerID string, since time.Time) (*Lead, error)
	// MarkRouted assigns the lead to a provider unless it is already routed.
	MarkRouted(ctx context.Context, id, providerID string, at time.Time) (*Lead, error)
	// Apply runs one provider transition as a single conditional update scoped to providerID.
	Apply(ctx context.Context, id, providerID string, t Transition) (*Lead, error)
}

// NewLeadID returns a 20 character, lowercase, time-sortable identifier.
func NewLeadID() string {
	return xid.New().String()
}

// InMemoryRepository is a stub implementation of Repository using in-memory storage
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Put stores a lead as-is. Used for seeding fixtures.
func (r *InMemoryRepository) Put(l *Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneLead(l)
	if cp.ID == "" {
		cp.ID = NewLeadID()
	}
	if cp.Status == "" {
		cp.Status = StatusOpen
	}
	r.leads[cp.ID] = cp
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := r.now()
	lead := newLead(req, now)

	r.mu.Lock()
	r.leads[lead.ID] = cloneLead(lead)
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Lead, 0, len(r.leads))
	for _, l := range r.leads {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.RoutedToID != "" && l.RoutedTo() != filter.RoutedToID {
			continue
		}
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	out := make([]*Lead, 0, len(all))
	for _, l := range all {
		out = append(out, cloneLead(l))
	}
	return out, nil
}

func (r *InMemoryRepository) GetForProvider(ctx context.Context, id, providerID string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || providerID == "" || lead.RoutedTo() != providerID {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

func (r *InMemoryRepository) MostRecentForProvider(ctx context.Context, providerID string, since time.Time) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Lead
	for _, l := range r.leads {
		if providerID == "" || l.RoutedTo() != providerID || l.RoutedAt == nil || l.RoutedAt.Before(since) {
			continue
		}
		if best == nil || l.RoutedAt.After(*best.RoutedAt) ||
			(l.RoutedAt.Equal(*best.RoutedAt) && l.ID > best.ID) {
			best = l
		}
	}
	if best == nil {
		return nil, ErrLeadNotFound
	}
	return cloneLead(best), nil
}

func (r *InMemoryRepository) MarkRouted(ctx context.Context, id, providerID string, at time.Time) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	if lead.RoutedToID != nil {
		return nil, ErrAlreadyRouted
	}
	pid := providerID
	routedAt := at
	lead.RoutedToID = &pid
	lead.RoutedAt = &routedAt
	lead.UpdatedAt = at
	return cloneLead(lead), nil
}

// Apply holds the write lock for the whole read-modify-write, which gives the
// same atomicity as the single UPDATE statement in Postgres.
func (r *InMemoryRepository) Apply(ctx context.Context, id, providerID string, t Transition) (*Lead, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.At.IsZero() {
		t.At = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok || providerID == "" || lead.RoutedTo() != providerID {
		return nil, ErrLeadNotFound
	}
	t.applyTo(lead)
	return cloneLead(lead), nil
}

func newLead(req *CreateLeadRequest, now time.Time) *Lead {
	source := req.Source
	if source == "" {
		source = "web_form"
	}
	price := req.PriceCents
	if price == 0 {
		price = DefaultPricing.PriceFor(req.Urgency)
	}
	return &Lead{
		ID:         NewLeadID(),
		FullName:   req.FullName,
		Phone:      req.Phone,
		Email:      req.Email,
		Address1:   req.Address1,
		City:       req.City,
		State:      req.State,
		ZIP:        req.ZIP,
		Urgency:    req.Urgency,
		Notes:      req.Notes,
		Source:     source,
		PriceCents: price,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func cloneLead(l *Lead) *Lead {
	cp := *l
	cp.RoutedToID = cloneString(l.RoutedToID)
	cp.RoutedAt = cloneTime(l.RoutedAt)
	cp.ClaimedAt = cloneTime(l.ClaimedAt)
	cp.FirstContactAt = cloneTime(l.FirstContactAt)
	cp.CompletedAt = cloneTime(l.CompletedAt)
	if l.Outcome != nil {
		o := *l.Outcome
		cp.Outcome = &o
	}
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
