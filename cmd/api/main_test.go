package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/mobilephlebotomy/leadrouter/internal/config"
	"github.com/mobilephlebotomy/leadrouter/internal/leads"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveReply("sms", "claim")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "leadrouter_replies_processed_total") {
		t.Fatalf("expected reply counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors to be registered")
	}
}

func TestBuildStoresWithoutDatabaseUsesMemory(t *testing.T) {
	st := buildStores(nil, &appconfig.Config{}, logging.NewWithWriter("error", io.Discard))
	if _, ok := st.leads.(*leads.InMemoryRepository); !ok {
		t.Fatalf("expected in-memory lead repository, got %T", st.leads)
	}
	if st.providers == nil || st.submissions == nil || st.centroids == nil {
		t.Fatalf("expected all stores to be set")
	}
	if _, found, err := st.centroids.Lookup(context.Background(), "48126"); err != nil || found {
		t.Fatalf("expected empty centroid table, got found=%v err=%v", found, err)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "token"); got != "token" {
		t.Fatalf("expected fallback value, got %q", got)
	}
	if got := firstNonEmpty("secret", "token"); got != "secret" {
		t.Fatalf("expected first value, got %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
