package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/internal/session"
	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.POST("/echo", ctx.ChatRateLimit, func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestApp(checks ...apphttp.NamedCheck) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config: &config.Config{
			CORSOrigins:            []string{"http://localhost:3000"},
			ChatRateLimitPerMinute: 2,
		},
		Logger:  logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics.New(),
		Health:  checks,
		Modules: []apphttp.Module{echoModule{}},
	}
}

func TestHealthReportsDegradedCache(t *testing.T) {
	engine := New(newTestApp(
		apphttp.NamedCheck{Name: "database", Check: pingFunc(func(context.Context) error { return nil })},
		apphttp.NamedCheck{Name: "session_cache", Optional: true, Check: pingFunc(func(context.Context) error { return errors.New("down") })},
	))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded", body.Checks["session_cache"])
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestHealthShowsMemoryOnlySessionCacheAsDegraded(t *testing.T) {
	kv := session.NewFallbackKV(nil, session.NewMemoryKV(), nil, nil)
	engine := New(newTestApp(
		apphttp.NamedCheck{Name: "database", Check: pingFunc(func(context.Context) error { return nil })},
		apphttp.NamedCheck{Name: "sessionCache", Optional: true, Check: kv},
	))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Checks["sessionCache"])
}

func TestHealthFailsWhenDatabaseDown(t *testing.T) {
	engine := New(newTestApp(
		apphttp.NamedCheck{Name: "database", Check: pingFunc(func(context.Context) error { return errors.New("down") })},
	))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChatRateLimitApplies(t *testing.T) {
	engine := New(newTestApp())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/echo", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		engine.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRequestIDIsEchoed(t *testing.T) {
	engine := New(newTestApp())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	engine.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	engine := New(newTestApp())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
