package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mobilephlebotomy/leadrouter/internal/dedupe"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// ProviderStore is the slice of the provider repository approval needs.
type ProviderStore interface {
	List(ctx context.Context, filter providers.ListFilter) ([]*providers.Provider, error)
	Create(ctx context.Context, req *providers.CreateProviderRequest) (*providers.Provider, error)
	Delete(ctx context.Context, ids []string) (int, error)
}

// AdminNotifier alerts the admin inbox about new applications.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// Service runs the submission review workflow.
type Service struct {
	repo      Repository
	providers ProviderStore
	notifier  AdminNotifier
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(repo Repository, ps ProviderStore, notifier AdminNotifier, logger *logging.Logger) *Service {
	if repo == nil || ps == nil {
		panic("submissions: repository and provider store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		providers: ps,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates an application and stores it as PENDING. It refuses
// businesses already pending review or already listed as VERIFIED.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pending, err := s.repo.List(ctx, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("submissions: list pending: %w", err)
	}
	for _, p := range pending {
		if field := matchSubmission(req, p); field != "" {
			return nil, &ConflictError{Err: ErrDuplicate, Name: p.BusinessName, Field: field}
		}
	}

	verified, err := s.providers.List(ctx, providers.ListFilter{Status: providers.StatusVerified})
	if err != nil {
		return nil, fmt.Errorf("submissions: list providers: %w", err)
	}
	name := dedupe.NormalizeName(req.BusinessName)
	site := dedupe.NormalizeWebsite(req.Website)
	for _, p := range verified {
		field := ""
		switch {
		case dedupe.NormalizeName(p.Name) == name:
			field = "name"
		case site != "" && dedupe.NormalizeWebsite(p.Website) == site:
			field = "website"
		}
		if field != "" {
			return nil, &ConflictError{Err: ErrDuplicate, Name: p.Name, ProviderID: p.ID, Field: field}
		}
	}

	sub, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("provider submission received", "submission_id", sub.ID, "business", sub.BusinessName, "state", sub.State)

	if s.notifier != nil {
		subject := "New Provider Listing - " + sub.BusinessName
		if err := s.notifier.NotifyAdmin(ctx, subject, submissionSummary(sub)); err != nil {
			s.logger.Warn("submission admin alert failed", "submission_id", sub.ID, "error", err)
		}
	}
	return sub, nil
}

func matchSubmission(req *CreateRequest, p *Submission) string {
	switch {
	case dedupe.NormalizeName(p.BusinessName) == dedupe.NormalizeName(req.BusinessName):
		return "name"
	case dedupe.NormalizeEmail(p.Email) == dedupe.NormalizeEmail(req.Email):
		return "email"
	case samePhone(p.Phone, req.Phone):
		return "phone"
	case sameWebsite(p.Website, req.Website):
		return "website"
	}
	return ""
}

func samePhone(a, b string) bool {
	na := dedupe.NormalizePhone(a)
	return na != "" && na == dedupe.NormalizePhone(b)
}

func sameEmail(a, b string) bool {
	na := dedupe.NormalizeEmail(a)
	return na != "" && na == dedupe.NormalizeEmail(b)
}

func sameWebsite(a, b string) bool {
	na := dedupe.NormalizeWebsite(a)
	return na != "" && na == dedupe.NormalizeWebsite(b)
}

func submissionSummary(s *Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New Provider Listing Application\n\n")
	fmt.Fprintf(&b, "Business Name: %s\nContact Name: %s\nEmail: %s\nPhone: %s\n", s.BusinessName, s.ContactName, s.Email, s.Phone)
	if s.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", s.Website)
	}
	fmt.Fprintf(&b, "Location: %s, %s %s\n", s.City, s.State, s.ZIPCode)
	if s.ServiceArea != "" {
		fmt.Fprintf(&b, "Service Area: %s\n", s.ServiceArea)
	}
	fmt.Fprintf(&b, "\n%s\n\nSubmission ID: %s\n", s.Description, s.ID)
	return b.String()
}

// List returns submissions with the given status, newest first.
func (s *Service) List(ctx context.Context, status Status) ([]*Submission, error) {
	return s.repo.List(ctx, status)
}

// Approve turns a pending submission into a VERIFIED provider. A verified
// provider already using the email or phone blocks approval. Unverified
// listings for the same business are deleted first.
func (s *Service) Approve(ctx context.Context, id string) (*Submission, *providers.Provider, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sub.Status != StatusPending {
		return nil, nil, ErrNotPending
	}

	all, err := s.providers.List(ctx, providers.ListFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("submissions: list providers: %w", err)
	}

	var superseded []string
	for _, p := range all {
		if p.Status == providers.StatusVerified {
			if field := verifiedConflict(sub, p); field != "" {
				s.logger.Warn("submission blocked by verified provider",
					"submission_id", sub.ID, "provider_id", p.ID, "field", field)
				return nil, nil, &ConflictError{Err: ErrVerifiedConflict, Name: p.Name, ProviderID: p.ID, Field: field}
			}
			continue
		}
		if supersedes(sub, p) {
			superseded = append(superseded, p.ID)
		}
	}

	if len(superseded) > 0 {
		n, err := s.providers.Delete(ctx, superseded)
		if err != nil {
			return nil, nil, fmt.Errorf("submissions: delete superseded providers: %w", err)
		}
		s.logger.Info("superseded unverified providers removed", "submission_id", sub.ID, "provider_ids", superseded, "deleted", n)
	}

	p, err := s.providers.Create(ctx, providerRequest(sub))
	if err != nil {
		return nil, nil, fmt.Errorf("submissions: create provider: %w", err)
	}
	pid := p.ID
	updated, err := s.repo.MarkReviewed(ctx, sub.ID, StatusApproved, &pid, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("submissions: mark approved: %w", err)
	}
	s.logger.Info("submission approved", "submission_id", sub.ID, "provider_id", p.ID)
	return updated, p, nil
}

func verifiedConflict(sub *Submission, p *providers.Provider) string {
	if sameEmail(sub.Email, p.Email) || sameEmail(sub.Email, p.ClaimEmail) {
		return "email"
	}
	if samePhone(sub.Phone, p.Phone) {
		return "phone"
	}
	return ""
}

func supersedes(sub *Submission, p *providers.Provider) bool {
	return dedupe.NormalizeName(sub.BusinessName) == dedupe.NormalizeName(p.Name) ||
		samePhone(sub.Phone, p.Phone) ||
		sameEmail(sub.Email, p.Email) || sameEmail(sub.Email, p.ClaimEmail) ||
		sameWebsite(sub.Website, p.Website)
}

func providerRequest(sub *Submission) *providers.CreateProviderRequest {
	req := &providers.CreateProviderRequest{
		Name:         sub.BusinessName,
		Email:        sub.Email,
		Phone:        sub.Phone,
		ClaimEmail:   sub.Email,
		Website:      sub.Website,
		PrimaryCity:  sub.City,
		PrimaryState: sub.State,
		ZIPCodes:     sub.ZIPCode,
		IsPhlebotomy: true,
		NotifyEmail:  true,
		Status:       providers.StatusVerified,
	}
	if sub.State != "" {
		cov := providers.Coverage{State: sub.State}
		if sub.City != "" {
			cov.Cities = []string{sub.City}
		}
		req.Coverage = []providers.Coverage{cov}
	}
	return req
}

// Reject closes a pending submission without creating a provider.
func (s *Service) Reject(ctx context.Context, id string) (*Submission, error) {
	sub, err := s.repo.MarkReviewed(ctx, id, StatusRejected, nil, s.now())
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) || errors.Is(err, ErrNotPending) {
			return nil, err
		}
		return nil, fmt.Errorf("submissions: reject: %w", err)
	}
	s.logger.Info("submission rejected", "submission_id", sub.ID)
	return sub, nil
}
