package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lead_intake_backend/internal/leads/repository"
	"lead_intake_backend/internal/leads/service"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemory()
	val := validator.New()
	h := New(service.New(repo, nil, nil, val, nil, log, "RO"), val)

	r := gin.New()
	api := r.Group("/api")
	h.RegisterRoutes(api.Group("/leads"))
	h.RegisterReviewRoutes(api.Group("/qualification"))
	return r, repo
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetLeadStatusCodes(t *testing.T) {
	r, repo := newTestRouter(t)
	l, err := repo.Create(context.Background(), repository.CreateParams{Email: "a@x.com", Name: "Ana"})
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/api/leads/" + l.ID.String(), http.StatusOK},
		{"unknown", "/api/leads/" + uuid.NewString(), http.StatusNotFound},
		{"malformed", "/api/leads/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestListLeadsResponseShape(t *testing.T) {
	r, repo := newTestRouter(t)
	_, err := repo.Create(context.Background(), repository.CreateParams{Email: "a@x.com", Name: "Ana"})
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/leads?limit=10&offset=0", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Leads      []map[string]any `json:"leads"`
		Metrics    map[string]any   `json:"metrics"`
		Pagination map[string]any   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Leads, 1)
	assert.Equal(t, "a@x.com", body.Leads[0]["email"])
	assert.Equal(t, "pending", body.Leads[0]["qualificationStatus"])
	assert.EqualValues(t, 1, body.Metrics["totalLeads"])
	assert.EqualValues(t, 10, body.Pagination["limit"])
}

func TestListLeadsRejectsUnknownStatus(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/leads?status=won", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversionMetricsRouteIsNotShadowedByLeadID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/leads/metrics/conversion", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"medianScore"`)
}

func TestCompleteQualificationValidatesStatus(t *testing.T) {
	r, repo := newTestRouter(t)
	l, err := repo.Create(context.Background(), repository.CreateParams{Email: "a@x.com", Name: "Ana"})
	require.NoError(t, err)
	path := "/api/qualification/complete/" + l.ID.String()

	w := do(r, http.MethodPost, path, `{"status":"won"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, path, `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"qualificationStatus":"rejected"`)
}
