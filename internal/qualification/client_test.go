package qualification

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
	last  *model.LLMRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	f.last = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.LLMResponse{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.NewPartFromText(f.reply)}},
		}, nil)
	}
}

func newTestClient(llm model.LLM, opts Options) *Client {
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	return NewClient(llm, DefaultPolicy(), opts, nil, log)
}

const validReply = `{
  "message": "Salut! Câte persoane sunteți?",
  "scoringFactors": {"budget": 60, "timeline": 40, "needAlignment": 80, "engagement": 70, "authority": 50},
  "qualificationScore": 62,
  "nextQuestion": "Câte persoane?",
  "recommendation": "needs_more_info"
}`

func TestEvaluateBuildsRequestFromPolicyAndTranscript(t *testing.T) {
	llm := &fakeLLM{reply: validReply}
	temp := 0.2
	client := newTestClient(llm, Options{Temperature: &temp, MaxTokens: 256})

	verdict, err := client.Evaluate(context.Background(), []Turn{
		{Role: RoleUser, Content: "Salut"},
		{Role: RoleAssistant, Content: "Bună!"},
		{Role: RoleUser, Content: "Vrem în Grecia"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Salut! Câte persoane sunteți?", verdict.Message)
	assert.Equal(t, scoring.Factors{Budget: 60, Timeline: 40, NeedAlignment: 80, Engagement: 70, Authority: 50}, verdict.Factors)
	assert.Equal(t, 62, verdict.ServiceScore)
	assert.Equal(t, scoring.RecommendationNeedsMoreInfo, verdict.Recommendation)

	req := llm.last
	require.NotNil(t, req)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, genai.RoleUser, req.Contents[0].Role)
	assert.Equal(t, genai.RoleModel, req.Contents[1].Role)
	assert.Equal(t, "Vrem în Grecia", req.Contents[2].Parts[0].Text)
	assert.Equal(t, "application/json", req.Config.ResponseMIMEType)
	assert.Equal(t, int32(256), req.Config.MaxOutputTokens)
	assert.InDelta(t, 0.2, *req.Config.Temperature, 0.0001)
	assert.Contains(t, req.Config.SystemInstruction.Parts[0].Text, "needAlignment")
}

func TestEvaluateTransportFailureIsUnavailable(t *testing.T) {
	client := newTestClient(&fakeLLM{err: errors.New("connection refused")}, Options{})

	_, err := client.Evaluate(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.Equal(t, FailureUnavailable, FailureKind(err))
}

func TestEvaluateTimeout(t *testing.T) {
	client := newTestClient(&fakeLLM{reply: validReply, delay: time.Second}, Options{Timeout: 20 * time.Millisecond})

	_, err := client.Evaluate(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, FailureTimeout, FailureKind(err))
}

func TestEvaluateContractViolationIsFormatError(t *testing.T) {
	client := newTestClient(&fakeLLM{reply: `{"message":"ok","scoringFactors":{"budget":10}}`}, Options{})

	_, err := client.Evaluate(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
	assert.True(t, apperr.Is(err, apperr.KindBadGateway))
	assert.Equal(t, FailureFormat, FailureKind(err))
}

func TestEvaluateEmptyTranscript(t *testing.T) {
	client := newTestClient(&fakeLLM{reply: validReply}, Options{})
	_, err := client.Evaluate(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
