package routing

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/internal/geo"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Handler exposes the matcher to admins for coverage checks.
type Handler struct {
	matcher *Matcher
	logger  *logging.Logger
}

func NewHandler(matcher *Matcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{matcher: matcher, logger: logger}
}

// PreviewMatch handles GET /admin/match?city=&state=&zip=
func (h *Handler) PreviewMatch(w http.ResponseWriter, r *http.Request) {
	q := Query{
		City:  strings.TrimSpace(r.URL.Query().Get("city")),
		State: strings.TrimSpace(r.URL.Query().Get("state")),
		ZIP:   geo.NormalizeZIP(r.URL.Query().Get("zip")),
	}
	if q.ZIP == "" && q.State == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "zip or state is required"})
		return
	}
	if abbr, ok := geo.NormalizeState(q.State); ok {
		q.State = abbr
	}

	candidates, err := h.matcher.Match(r.Context(), q)
	if err != nil {
		h.logger.Error("match preview failed", "error", err, "zip", q.ZIP)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to match providers"})
		return
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      q,
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
