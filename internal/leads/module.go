// Package leads provides the lead bounded context module: identity
// resolution, scoring, the dashboard and qualification review.
package leads

import (
	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/internal/leads/handler"
	"lead_intake_backend/internal/leads/ports"
	"lead_intake_backend/internal/leads/repository"
	"lead_intake_backend/internal/leads/service"
	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/events"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
	"lead_intake_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the leads module. A nil convos leaves conversations
// untouched when an outcome is set manually.
func NewModule(pool *pgxpool.Pool, convos ports.ConversationCloser, eventBus events.Bus, val *validator.Validator, cfg config.LeadsConfig, m *metrics.Metrics, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, convos, eventBus, val, m, log, cfg.GetPhoneDefaultRegion())
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the dashboard under /api/leads and review under
// /api/qualification.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.API.Group("/leads"))
	m.handler.RegisterReviewRoutes(ctx.API.Group("/qualification"))
}
