package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Router assigns a freshly created lead to a provider. An empty provider id
// means nobody could take the lead.
type Router interface {
	Route(ctx context.Context, lead *Lead) (providerID string, err error)
}

// Handler handles HTTP requests for leads
type Handler struct {
	repo    Repository
	router  Router
	pricing Pricing
	logger  *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, router Router, pricing Pricing, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if pricing.StandardCents == 0 && pricing.StatCents == 0 {
		pricing = DefaultPricing
	}
	return &Handler{
		repo:    repo,
		router:  router,
		pricing: pricing,
		logger:  logger,
	}
}

// SubmitLead handles POST /api/leads
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Invalid request body"})
		return
	}
	req.Source = "web_form"
	req.PriceCents = h.pricing.PriceFor(Urgency(strings.ToUpper(strings.TrimSpace(string(req.Urgency)))))

	lead, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Validation error", "details": verr.Fields})
			return
		}
		h.logger.Error("failed to create lead", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Failed to submit lead"})
		return
	}
	h.logger.Info("lead created", "lead_id", lead.ID, "zip", lead.ZIP, "urgency", lead.Urgency)

	providerID := ""
	if h.router != nil {
		providerID, err = h.router.Route(r.Context(), lead)
		if err != nil {
			h.logger.Error("lead routing failed", "lead_id", lead.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "leadId": lead.ID, "error": "Failed to submit lead"})
			return
		}
	}

	if providerID == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"leadId":  lead.ID,
			"status":  "unserved",
			"message": "Lead created but no eligible provider found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"leadId":  lead.ID,
		"status":  "routed",
		"message": "Lead successfully delivered to provider",
	})
}

// GetStatus handles GET /api/leads/{id}/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "id")))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Lead ID is required"})
		return
	}
	lead, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "Lead not found"})
			return
		}
		h.logger.Error("lead status lookup failed", "lead_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Failed to check lead status"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"status":     strings.ToLower(string(lead.Status)),
		"leadId":     lead.ID,
		"priceCents": lead.PriceCents,
		"urgency":    lead.Urgency,
		"zip":        lead.ZIP,
		"city":       lead.City,
		"state":      lead.State,
	})
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = Status(strings.ToUpper(status))
	}
	filter.RoutedToID = r.URL.Query().Get("provider_id")

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}
	if leads == nil {
		leads = []*Lead{}
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

type updateStatusRequest struct {
	ProviderID string  `json:"providerId"`
	Action     Action  `json:"action"`
	Outcome    Outcome `json:"outcome"`
	Notes      string  `json:"notes"`
}

// UpdateStatus handles POST /admin/leads/{id}/update-status, the manual
// counterpart of a provider reply.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProviderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "providerId and action are required"})
		return
	}

	lead, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Lead not found"})
			return
		}
		h.logger.Error("lead lookup failed", "lead_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
		return
	}
	if lead.RoutedTo() != req.ProviderID {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error": "Unauthorized - lead not assigned to this provider"})
		return
	}

	updated, err := h.repo.Apply(r.Context(), id, req.ProviderID, Transition{
		Action:  req.Action,
		Outcome: req.Outcome,
		Notes:   req.Notes,
		At:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrUnknownAction) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		h.logger.Error("lead update failed", "lead_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
		return
	}
	h.logger.Info("lead updated manually", "lead_id", id, "provider_id", req.ProviderID, "action", req.Action)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lead": updated})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
