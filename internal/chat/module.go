// Package chat provides the visitor-facing conversation endpoint.
package chat

import (
	"lead_intake_backend/internal/chat/handler"
	"lead_intake_backend/internal/chat/service"
	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/internal/qualification"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
	"lead_intake_backend/platform/validator"
)

// Module is the chat bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

func NewModule(sessions service.Sessions, transcripts service.Transcripts, leads service.Leads, evaluator qualification.Evaluator, val *validator.Validator, m *metrics.Metrics, log *logger.Logger) *Module {
	svc := service.New(sessions, transcripts, leads, evaluator, m, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "chat"
}

// RegisterRoutes mounts POST /api/chat/message behind the per-IP chat limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	chat := ctx.API.Group("/chat")
	if ctx.ChatRateLimit != nil {
		chat.Use(ctx.ChatRateLimit)
	}
	chat.POST("/message", m.handler.SendMessage)
}
