package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mobilephlebotomy/leadrouter/internal/api/router"
	"github.com/mobilephlebotomy/leadrouter/internal/app/bootstrap"
	"github.com/mobilephlebotomy/leadrouter/internal/audit"
	appconfig "github.com/mobilephlebotomy/leadrouter/internal/config"
	"github.com/mobilephlebotomy/leadrouter/internal/dedupe"
	"github.com/mobilephlebotomy/leadrouter/internal/geo"
	httpmiddleware "github.com/mobilephlebotomy/leadrouter/internal/http/middleware"
	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/internal/notify"
	"github.com/mobilephlebotomy/leadrouter/internal/observability/metrics"
	"github.com/mobilephlebotomy/leadrouter/internal/providers"
	"github.com/mobilephlebotomy/leadrouter/internal/replies"
	"github.com/mobilephlebotomy/leadrouter/internal/routing"
	"github.com/mobilephlebotomy/leadrouter/internal/submissions"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// stores groups the repositories so dev mode can swap in memory fakes.
type stores struct {
	leads       leads.Repository
	providers   providers.Repository
	submissions submissions.Repository
	centroids   geo.CentroidStore
}

func main() {
	// Best effort: production injects env directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadrouter API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool, sqlDB := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
		defer sqlDB.Close()
	} else if cfg.Env == "production" {
		logger.Error("DATABASE_URL is required in production")
		os.Exit(1)
	}
	st := buildStores(pool, cfg, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	replayGuard := bootstrap.BuildReplayGuard(redisClient, cfg, logger)

	metricsHandler, m := setupMetrics()

	smsSender, smsName := bootstrap.BuildSMSSender(cfg, logger)
	emailSender, err := bootstrap.BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure email", "error", err)
		os.Exit(1)
	}
	logger.Info("notification channels configured", "sms", smsName, "email", cfg.EmailProvider)

	dispatcher := notify.NewDispatcher(smsSender, emailSender, notify.Config{
		AdminEmail:   cfg.AdminEmail,
		DashboardURL: cfg.DashboardURL,
		LeadReplyTo:  cfg.LeadEmailReplyTo,
	}, m, logger)

	matcher := routing.NewMatcher(st.providers, st.centroids,
		routing.WithDefaultLocation(bootstrap.LoadDefaultLocation(cfg.DefaultProviderTZ, logger)),
	)
	leadRouter := routing.NewRouter(matcher, st.leads, routing.NoopBiller{}, dispatcher, m, logger)

	processorOpts := []replies.ProcessorOption{replies.WithMetrics(m)}
	var auditStore *audit.Store
	if sqlDB != nil {
		auditStore = audit.NewStore(sqlDB)
		processorOpts = append(processorOpts, replies.WithAudit(auditStore))
	}
	processor := replies.NewProcessor(st.leads, replies.Windows{
		SMS:   cfg.SMSFreshnessWindow,
		Email: cfg.EmailFreshnessWindow,
	}, logger, processorOpts...)

	routerCfg := &router.Config{
		Logger: logger,
		LeadsHandler: leads.NewHandler(st.leads, leadRouter, leads.Pricing{
			StandardCents: cfg.LeadPriceStandardCents,
			StatCents:     cfg.LeadPriceStatCents,
		}, logger),
		RepliesHandler: replies.NewHandler(processor, st.providers, replayGuard, replies.HandlerConfig{
			WebhookSecret: firstNonEmpty(cfg.TwilioWebhookSecret, cfg.TwilioAuthToken),
			PublicBaseURL: cfg.PublicBaseURL,
			DashboardURL:  cfg.DashboardURL,
			SupportEmail:  cfg.AdminEmail,
		}, m, logger),
		ProvidersHandler: providers.NewHandler(st.providers, logger),
		SubmissionsHandler: submissions.NewHandler(
			submissions.NewService(st.submissions, st.providers, dispatcher, logger), logger),
		MatchHandler:       routing.NewHandler(matcher, logger),
		MetricsHandler:     metricsHandler,
		LeadLimiter:        httpmiddleware.NewRateLimiter(cfg.LeadSubmitRate, cfg.LeadSubmitBurst),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if sqlDB != nil {
		routerCfg.DuplicatesHandler = dedupe.NewHandler(dedupe.NewCleaner(sqlDB, logger), logger)
		routerCfg.AuditHandler = audit.NewHandler(auditStore, logger)
		routerCfg.HealthCheck = pingCheck(sqlDB)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server stopped")
}

func buildStores(pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) stores {
	if pool == nil {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		return stores{
			leads:       leads.NewInMemoryRepository(),
			providers:   providers.NewInMemoryRepository(),
			submissions: submissions.NewInMemoryRepository(),
			centroids:   geo.StaticCentroids{},
		}
	}
	return stores{
		leads:       leads.NewPostgresRepository(pool),
		providers:   providers.NewPostgresRepository(pool),
		submissions: submissions.NewPostgresRepository(pool),
		centroids:   geo.NewCachedCentroidStore(geo.NewPostgresCentroidStore(pool), cfg.ZIPCacheTTL),
	}
}

func setupMetrics() (http.Handler, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func pingCheck(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
