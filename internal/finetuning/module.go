// Package finetuning provides the training-data module: labelled samples,
// stats and JSONL exports.
package finetuning

import (
	"lead_intake_backend/internal/adapters/storage"
	"lead_intake_backend/internal/finetuning/handler"
	"lead_intake_backend/internal/finetuning/ports"
	"lead_intake_backend/internal/finetuning/repository"
	"lead_intake_backend/internal/finetuning/service"
	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the fine-tuning bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the module. store is nil when object storage is disabled.
func NewModule(pool *pgxpool.Pool, transcripts ports.TranscriptReader, store storage.StorageService, bucket string, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), transcripts, store, bucket, log)
	return &Module{
		handler: handler.New(svc, val, log),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "finetuning"
}

// Service returns the training-data service for the follow-up worker.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.API.Group("/fine-tuning"))
}
