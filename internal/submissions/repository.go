package submissions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores submissions.
type Repository interface {
	Create(ctx context.Context, req *CreateRequest) (*Submission, error)
	GetByID(ctx context.Context, id string) (*Submission, error)
	// List returns submissions newest first. An empty status lists all.
	List(ctx context.Context, status Status) ([]*Submission, error)
	// MarkReviewed moves a PENDING submission to status. It returns
	// ErrNotPending when the submission was already reviewed.
	MarkReviewed(ctx context.Context, id string, status Status, providerID *string, at time.Time) (*Submission, error)
}

type InMemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]*Submission
	now  func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		subs: make(map[string]*Submission),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateRequest) (*Submission, error) {
	s := newSubmission(req, r.now())
	r.mu.Lock()
	r.subs[s.ID] = clone(s)
	r.mu.Unlock()
	return s, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return clone(s), nil
}

func (r *InMemoryRepository) List(ctx context.Context, status Status) ([]*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Submission, 0, len(r.subs))
	for _, s := range r.subs {
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepository) MarkReviewed(ctx context.Context, id string, status Status, providerID *string, at time.Time) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	if s.Status != StatusPending {
		return nil, ErrNotPending
	}
	s.Status = status
	if providerID != nil {
		pid := *providerID
		s.ProviderID = &pid
	}
	reviewed := at
	s.ReviewedAt = &reviewed
	return clone(s), nil
}

func newSubmission(req *CreateRequest, now time.Time) *Submission {
	return &Submission{
		ID:           uuid.New().String(),
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		Description:  req.Description,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ZIPCode:      req.ZIPCode,
		ServiceArea:  req.ServiceArea,
		Status:       StatusPending,
		SubmittedAt:  now,
	}
}

func clone(s *Submission) *Submission {
	cp := *s
	if s.ProviderID != nil {
		pid := *s.ProviderID
		cp.ProviderID = &pid
	}
	if s.ReviewedAt != nil {
		at := *s.ReviewedAt
		cp.ReviewedAt = &at
	}
	return &cp
}
