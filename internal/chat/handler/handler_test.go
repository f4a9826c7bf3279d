package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lead_intake_backend/internal/adapters"
	"lead_intake_backend/internal/chat/service"
	convrepo "lead_intake_backend/internal/conversations/repository"
	convsvc "lead_intake_backend/internal/conversations/service"
	leadrepo "lead_intake_backend/internal/leads/repository"
	leadsvc "lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/qualification"
	"lead_intake_backend/internal/session"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type unavailableEvaluator struct{}

func (unavailableEvaluator) Evaluate(context.Context, []qualification.Turn) (qualification.Verdict, error) {
	return qualification.Verdict{}, apperr.Wrap(apperr.KindUnavailable, "qualification service unavailable", qualification.ErrUnavailable)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	val := validator.New()
	convos := convsvc.New(convrepo.NewMemory(), log)
	leads := leadsvc.New(leadrepo.NewMemory(), nil, nil, val, nil, log, "RO")
	resolver := session.NewResolver(
		session.NewStore(session.NewMemoryKV()),
		adapters.NewSessionLeadResolver(leads),
		adapters.NewSessionConversationLinker(convos),
		time.Hour,
	)
	h := New(service.New(resolver, convos, leads, unavailableEvaluator{}, nil, log), val)

	r := gin.New()
	r.POST("/api/chat/message", h.SendMessage)
	return r
}

func TestSendMessageStatusCodes(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"message":`, http.StatusBadRequest},
		{"blank message", `{"leadEmail":"a@x.com","message":"   "}`, http.StatusBadRequest},
		{"no identity", `{"message":"Salut"}`, http.StatusBadRequest},
		{"reasoning service down", `{"leadEmail":"a@x.com","message":"Salut"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
