package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Service is what the admin handler needs from a Cleaner.
type Service interface {
	Find(ctx context.Context) ([]Group, error)
	Remove(ctx context.Context, dryRun bool) (*Report, error)
}

type Handler struct {
	svc    Service
	logger *logging.Logger
}

func NewHandler(svc Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type groupView struct {
	MatchKey  string         `json:"matchKey"`
	Count     int            `json:"count"`
	Providers []providerView `json:"providers"`
}

type providerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListDuplicates handles GET /admin/duplicates
func (h *Handler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Find(r.Context())
	if err != nil {
		h.logger.Error("failed to find duplicates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to find duplicates"})
		return
	}
	views := make([]groupView, 0, len(groups))
	total := 0
	for _, g := range groups {
		v := groupView{MatchKey: g.Key, Count: len(g.Listings)}
		for _, l := range g.Listings {
			v.Providers = append(v.Providers, providerView{
				ID:        l.ID,
				Name:      l.Name,
				Website:   l.Website,
				Location:  l.Location(),
				CreatedAt: l.CreatedAt,
			})
		}
		total += len(g.Listings) - 1
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"groupsFound":     len(groups),
		"totalDuplicates": total,
		"groups":          views,
	})
}

type removeRequest struct {
	DryRun *bool `json:"dryRun"`
}

// RemoveDuplicates handles POST /admin/duplicates. Only an explicit
// {"dryRun": false} writes.
func (h *Handler) RemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}
	dryRun := req.DryRun == nil || *req.DryRun

	report, err := h.svc.Remove(r.Context(), dryRun)
	if err != nil {
		h.logger.Error("duplicate cleanup failed", "error", err, "dry_run", dryRun)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "duplicate cleanup failed"})
		return
	}
	h.logger.Info("duplicate cleanup finished",
		"dry_run", dryRun,
		"groups", report.GroupsFound,
		"deleted", report.ProvidersDeleted,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"dryRun":           report.DryRun,
		"groupsFound":      report.GroupsFound,
		"providersDeleted": report.ProvidersDeleted,
		"coverageMoved":    report.CoverageMoved,
		"details":          report.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
