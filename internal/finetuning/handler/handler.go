package handler

import (
	"net/http"

	"lead_intake_backend/internal/finetuning/service"
	"lead_intake_backend/internal/finetuning/transport"
	"lead_intake_backend/platform/httpkit"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
	log *logger.Logger
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/record", h.Record)
	rg.GET("/data", h.Data)
	rg.GET("/stats", h.Stats)
	rg.GET("/export/jsonl", h.ExportJSONL)
	rg.POST("/export/archive", h.Archive)
}

// POST /api/fine-tuning/record
func (h *Handler) Record(c *gin.Context) {
	var req transport.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.Record(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// GET /api/fine-tuning/data
func (h *Handler) Data(c *gin.Context) {
	var req transport.DataRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GET /api/fine-tuning/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

// GET /api/fine-tuning/export/jsonl
func (h *Handler) ExportJSONL(c *gin.Context) {
	query, ok := h.bindOutcome(c)
	if !ok {
		return
	}

	c.Header("Content-Type", service.ExportContentType)
	c.Header("Content-Disposition", "attachment; filename="+service.ExportFileName)
	c.Status(http.StatusOK)
	// Headers are already sent; a failure can only cut the stream short.
	if _, err := h.svc.ExportJSONL(c.Request.Context(), query.Outcome, c.Writer); err != nil {
		h.log.Error("training export interrupted", "error", err)
	}
}

// POST /api/fine-tuning/export/archive
func (h *Handler) Archive(c *gin.Context) {
	query, ok := h.bindOutcome(c)
	if !ok {
		return
	}
	result, err := h.svc.Archive(c.Request.Context(), query.Outcome)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bindOutcome(c *gin.Context) (transport.OutcomeQuery, bool) {
	var query transport.OutcomeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return query, false
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return query, false
	}
	return query, true
}
