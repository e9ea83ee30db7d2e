package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilephlebotomy/leadrouter/internal/providers"
)

func newTestRouter(t *testing.T) (http.Handler, *Service, *providers.InMemoryRepository) {
	t.Helper()
	svc, _, ps, _ := newService(t)
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/api/submissions", h.Submit)
	r.Get("/admin/submissions", h.List)
	r.Post("/admin/submissions/{id}/approve", h.Approve)
	r.Post("/admin/submissions/{id}/reject", h.Reject)
	return r, svc, ps
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestHandlerSubmitAndDuplicate(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec, body := do(t, r, http.MethodPost, "/api/submissions", application())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = do(t, r, http.MethodPost, "/api/submissions", application())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Metro Draws", body["existing"])
}

func TestHandlerSubmitValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)
	req := application()
	req.BusinessName = ""

	rec, body := do(t, r, http.MethodPost, "/api/submissions", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["fields"])
}

func TestHandlerApproveConflictNamesProvider(t *testing.T) {
	r, svc, ps := newTestRouter(t)
	sub, err := svc.Create(context.Background(), application())
	require.NoError(t, err)
	ps.Put(&providers.Provider{ID: "prov-9", Name: "Wayne Mobile Labs", Email: "owner@metrodraws.com", Status: providers.StatusVerified})

	rec, body := do(t, r, http.MethodPost, "/admin/submissions/"+sub.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Wayne Mobile Labs", body["existing"])
	assert.Equal(t, "prov-9", body["providerId"])
}

func TestHandlerApproveRejectFlow(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	sub, err := svc.Create(context.Background(), application())
	require.NoError(t, err)

	rec, body := do(t, r, http.MethodPost, "/admin/submissions/"+sub.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["provider"])

	rec, _ = do(t, r, http.MethodPost, "/admin/submissions/"+sub.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, r, http.MethodPost, "/admin/submissions/missing/reject", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, r, http.MethodGet, "/admin/submissions?status=approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = do(t, r, http.MethodGet, "/admin/submissions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
