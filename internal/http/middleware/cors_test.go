package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(allowed []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(method, "/api/leads", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", "POST")
	}
	rec := httptest.NewRecorder()
	CORS(allowed)(handler).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	rec, called := corsRequest([]string{"https://mobilephlebotomy.org/"}, http.MethodPost, "https://mobilephlebotomy.org")
	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://mobilephlebotomy.org" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" || rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatalf("expected allow methods and headers")
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	rec, called := corsRequest([]string{"https://mobilephlebotomy.org"}, http.MethodPost, "https://unknown.example")
	if !called {
		t.Fatalf("non-preflight requests still reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	rec, _ := corsRequest([]string{"*"}, http.MethodGet, "https://random.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestCORSSubdomainPattern(t *testing.T) {
	allowed := []string{"https://*.mobilephlebotomy.org"}
	cases := map[string]bool{
		"https://admin.mobilephlebotomy.org": true,
		"https://mobilephlebotomy.org":       false,
		"http://admin.mobilephlebotomy.org":  false,
		"https://evilmobilephlebotomy.org":   false,
	}
	for origin, want := range cases {
		rec, _ := corsRequest(allowed, http.MethodGet, origin)
		got := rec.Header().Get("Access-Control-Allow-Origin") != ""
		if got != want {
			t.Fatalf("origin %s: expected allowed=%v", origin, want)
		}
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	rec, called := corsRequest([]string{"https://mobilephlebotomy.org"}, http.MethodOptions, "https://mobilephlebotomy.org")
	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec, _ = corsRequest([]string{"https://mobilephlebotomy.org"}, http.MethodOptions, "https://unknown.example")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for unknown preflight, got %d", http.StatusForbidden, rec.Code)
	}
}
