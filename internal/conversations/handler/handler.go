package handler

import (
	"net/http"

	"lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidConversationID = "invalid conversation ID"

// Handler serves conversation reads.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// GetConversation returns a conversation with its ordered messages.
// GET /api/chat/conversation/:conversationId
func (h *Handler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidConversationID, nil)
		return
	}

	result, err := h.svc.GetWithMessages(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
