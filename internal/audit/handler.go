package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Querier reads audit events.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

type Handler struct {
	store  Querier
	logger *logging.Logger
}

func NewHandler(store Querier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ListReplies handles GET /admin/replies
func (h *Handler) ListReplies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		LeadID:     strings.ToLower(strings.TrimSpace(q.Get("lead_id"))),
		Channel:    strings.ToLower(strings.TrimSpace(q.Get("channel"))),
		Limit:      50,
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = min(v, 200)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list reply events", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list replies"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
