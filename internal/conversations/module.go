// Package conversations provides the transcript bounded context: conversations
// bound to session tokens and their append-only message log.
package conversations

import (
	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/internal/conversations/handler"
	"lead_intake_backend/internal/conversations/repository"
	"lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the conversations bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	return newModule(repo, log)
}

func newModule(repo repository.Repository, log *logger.Logger) *Module {
	svc := service.New(repo, log)
	return &Module{
		handler: handler.New(svc),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "conversations"
}

// Service returns the transcript manager for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts conversation reads under /api/chat.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.GET("/chat/conversation/:conversationId", m.handler.GetConversation)
}
