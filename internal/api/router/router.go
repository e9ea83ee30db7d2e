package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mobilephlebotomy/leadrouter/internal/audit"
	"github.com/mobilephlebotomy/leadrouter/internal/dedupe"
	httpmiddleware "github.com/mobilephlebotomy/leadrouter/internal/http/middleware"
	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/internal/replies"
	"github.com/mobilephlebotomy/leadrouter/internal/routing"
	"github.com/mobilephlebotomy/leadrouter/internal/submissions"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	RepliesHandler     *replies.Handler
	ProvidersHandler   *providers.Handler
	SubmissionsHandler *submissions.Handler
	DuplicatesHandler  *dedupe.Handler
	AuditHandler       *audit.Handler
	MatchHandler       *routing.Handler
	MetricsHandler     http.Handler

	// LeadLimiter throttles public lead submissions per client.
	LeadLimiter *httpmiddleware.RateLimiter

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// HealthCheck reports dependency health (database ping). Optional.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Provider replies (Twilio + SendGrid Inbound Parse)
	if cfg.RepliesHandler != nil {
		r.Route("/webhooks", func(hooks chi.Router) {
			hooks.Post("/sms-reply", cfg.RepliesHandler.SMSReply)
			hooks.Post("/sms-fallback", cfg.RepliesHandler.SMSFallback)
			hooks.Post("/email-reply", cfg.RepliesHandler.EmailReply)
		})
	}

	// Public API
	r.Route("/api", func(api chi.Router) {
		if cfg.LeadsHandler != nil {
			api.Route("/leads", func(lr chi.Router) {
				if cfg.LeadLimiter != nil {
					lr.With(httpmiddleware.RateLimit(cfg.LeadLimiter)).Post("/", cfg.LeadsHandler.SubmitLead)
				} else {
					lr.Post("/", cfg.LeadsHandler.SubmitLead)
				}
				lr.Get("/{id}/status", cfg.LeadsHandler.GetStatus)
			})
		}
		if cfg.SubmissionsHandler != nil {
			api.Post("/submissions", cfg.SubmissionsHandler.Submit)
		}
	})

	// Admin routes (HS256 JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.LeadsHandler != nil {
				admin.Get("/leads", cfg.LeadsHandler.ListLeads)
				admin.Post("/leads/{id}/update-status", cfg.LeadsHandler.UpdateStatus)
			}
			if cfg.ProvidersHandler != nil {
				admin.Get("/providers", cfg.ProvidersHandler.ListProviders)
				admin.Patch("/providers/{id}/eligibility", cfg.ProvidersHandler.SetEligibility)
				admin.Put("/providers/{id}/settings", cfg.ProvidersHandler.UpdateSettings)
			}
			if cfg.SubmissionsHandler != nil {
				admin.Get("/submissions", cfg.SubmissionsHandler.List)
				admin.Post("/submissions/{id}/approve", cfg.SubmissionsHandler.Approve)
				admin.Post("/submissions/{id}/reject", cfg.SubmissionsHandler.Reject)
			}
			if cfg.DuplicatesHandler != nil {
				admin.Get("/duplicates", cfg.DuplicatesHandler.ListDuplicates)
				admin.Post("/duplicates", cfg.DuplicatesHandler.RemoveDuplicates)
			}
			if cfg.AuditHandler != nil {
				admin.Get("/replies", cfg.AuditHandler.ListReplies)
			}
			if cfg.MatchHandler != nil {
				admin.Get("/match", cfg.MatchHandler.PreviewMatch)
			}
		})
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
