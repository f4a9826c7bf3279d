// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NamedCheck pairs a dependency name with its health check.
type NamedCheck struct {
	Name  string
	Check HealthChecker
	// Optional checks report degraded instead of failing readiness.
	Optional bool
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	Config  config.HTTPConfig
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Health  []NamedCheck
	Modules []Module

	// MetricsHandler overrides the /metrics handler; nil uses Metrics.Handler().
	MetricsHandler http.Handler
}
