package providers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Handler serves the admin provider endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new providers handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListProviders handles GET /admin/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 100}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = Status(status)
	}
	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list providers", "error", err)
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": list, "count": len(list)})
}

type eligibilityRequest struct {
	Eligible *bool `json:"eligible"`
}

// SetEligibility handles PATCH /admin/providers/{id}/eligibility
func (h *Handler) SetEligibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req eligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Eligible == nil {
		http.Error(w, "eligible is required", http.StatusBadRequest)
		return
	}
	p, err := h.repo.SetEligibility(r.Context(), id, *req.Eligible)
	if err != nil {
		h.writeRepoError(w, err, id)
		return
	}
	h.logger.Info("provider eligibility updated", "provider_id", id, "eligible", p.EligibleForLeads)
	writeJSON(w, http.StatusOK, p)
}

// UpdateSettings handles PUT /admin/providers/{id}/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.repo.UpdateSettings(r.Context(), id, settings)
	if err != nil {
		h.writeRepoError(w, err, id)
		return
	}
	h.logger.Info("provider availability updated",
		"provider_id", id,
		"days", p.Schedule.Days,
		"hours", p.Schedule.Start+"-"+p.Schedule.End,
		"radius_miles", p.ServiceRadiusMiles,
	)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, ErrProviderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrScheduleRequired), errors.Is(err, ErrInvalidRadius),
		errors.Is(err, ErrInvalidClock), errors.Is(err, ErrInvalidDay):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("provider update failed", "provider_id", id, "error", err)
		http.Error(w, "failed to update provider", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
