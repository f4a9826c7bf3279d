package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// New builds the gin engine with shared middleware and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(app.Metrics.Middleware())
	engine.Use(cors.New(corsConfig(app)))

	engine.GET("/health", healthHandler(app.Health))
	engine.GET("/api/health", healthHandler(app.Health))

	metricsHandler := app.MetricsHandler
	if metricsHandler == nil && app.Metrics != nil {
		metricsHandler = app.Metrics.Handler()
	}
	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}

	limiter := httpkit.NewPerMinuteRateLimiter(app.Config.GetChatRateLimitPerMinute(), app.Logger)
	rc := &apphttp.RouterContext{
		Engine:        engine,
		API:           engine.Group("/api"),
		ChatRateLimit: limiter.RateLimit(),
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(rc)
		app.Logger.Debug("registered module routes", slog.String("module", module.Name()))
	}

	engine.NoRoute(func(c *gin.Context) {
		httpkit.Error(c, http.StatusNotFound, "not found", nil)
	})

	return engine
}

func corsConfig(app *apphttp.App) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID, "Content-Disposition"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}
	return cfg
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks []apphttp.NamedCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, check := range checks {
			if err := check.Check.Ping(ctx); err != nil {
				if check.Optional {
					resp.Checks[check.Name] = "degraded"
					if resp.Status == "ok" {
						resp.Status = "degraded"
					}
					continue
				}
				resp.Checks[check.Name] = "unavailable"
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		c.JSON(status, resp)
	}
}
