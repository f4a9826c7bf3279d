package handler

import (
	"net/http"

	"lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/leads/transport"
	"lead_intake_backend/platform/httpkit"
	"lead_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead ID"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/metrics/conversion", h.ConversionMetrics)
	rg.GET("/:leadId", h.GetByID)
	rg.GET("/:leadId/scoring-history", h.ScoringHistory)
}

// RegisterReviewRoutes mounts the qualification review endpoints.
func (h *Handler) RegisterReviewRoutes(rg *gin.RouterGroup) {
	rg.GET("/lead/:leadId", h.Review)
	rg.POST("/complete/:leadId", h.CompleteQualification)
}

// GET /api/leads
func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
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

// GET /api/leads/:leadId
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}
	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

// GET /api/leads/metrics/conversion
func (h *Handler) ConversionMetrics(c *gin.Context) {
	m, err := h.svc.ConversionMetrics(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, m)
}

// GET /api/leads/:leadId/scoring-history
func (h *Handler) ScoringHistory(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}
	history, err := h.svc.ScoringHistory(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, history)
}

// GET /api/qualification/lead/:leadId
func (h *Handler) Review(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}
	review, err := h.svc.Review(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, review)
}

// POST /api/qualification/complete/:leadId
func (h *Handler) CompleteQualification(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}
	var req transport.CompleteQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid status", validator.FieldErrors(err))
		return
	}

	result, err := h.svc.CompleteQualification(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
