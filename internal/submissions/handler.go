package submissions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /api/submissions
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	sub, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"submission": sub,
		"message":    "Application received. We will review it shortly.",
	})
}

// List handles GET /admin/submissions?status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := Status(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case "", StatusPending, StatusApproved, StatusRejected:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid status"})
		return
	}
	subs, err := h.svc.List(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list submissions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
		return
	}
	if subs == nil {
		subs = []*Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "submissions": subs, "count": len(subs)})
}

// Approve handles POST /admin/submissions/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, p, err := h.svc.Approve(r.Context(), id)
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Provider approved and added to directory.",
		"submission": sub,
		"provider":   p,
	})
}

// Reject handles POST /admin/submissions/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.svc.Reject(r.Context(), id)
	if err != nil {
		h.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Submission rejected", "submission": sub})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, id string) {
	var (
		conflict *ConflictError
		verr     *ValidationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, ErrInvalidSubmission):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
	case errors.As(err, &conflict):
		body := map[string]any{"success": false, "error": conflict.Error(), "existing": conflict.Name}
		if conflict.ProviderID != "" {
			body["providerId"] = conflict.ProviderID
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, providers.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": err.Error()})
	case errors.Is(err, ErrSubmissionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Submission not found"})
	case errors.Is(err, ErrNotPending):
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": err.Error()})
	default:
		h.logger.Error("submission request failed", "submission_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
