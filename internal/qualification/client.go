// Package qualification asks the reasoning service to judge a conversation
// and validates its structured verdict.
package qualification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	DefaultTimeout   = 30 * time.Second
	jsonMIMEType     = "application/json"
	msgUnavailable   = "qualification service unavailable"
	msgInvalidOutput = "qualification service returned an invalid response"
)

var (
	// ErrUnavailable covers transport failures, refusals and timeouts.
	ErrUnavailable = errors.New("qualification service unavailable")
	// ErrFormat is returned when the response violates the output contract.
	ErrFormat = errors.New("qualification response malformed")
)

// Failure kinds reported to metrics and logs.
const (
	FailureUnavailable = "unavailable"
	FailureTimeout     = "timeout"
	FailureFormat      = "format"
)

// Role of a transcript turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one transcript entry as sent to the reasoning service.
type Turn struct {
	Role    string
	Content string
}

// Evaluator judges a transcript whose last turn is the visitor's newest message.
type Evaluator interface {
	Evaluate(ctx context.Context, transcript []Turn) (Verdict, error)
}

// Options override the policy's generation settings. Zero values keep the policy.
type Options struct {
	Timeout     time.Duration
	Temperature *float64
	MaxTokens   int
}

// Client is the Evaluator backed by an ADK model.
type Client struct {
	llm     model.LLM
	policy  Policy
	timeout time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
}

var _ Evaluator = (*Client)(nil)

func NewClient(llm model.LLM, policy Policy, opts Options, m *metrics.Metrics, log *logger.Logger) *Client {
	if opts.Temperature != nil {
		policy.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		policy.MaxTokens = opts.MaxTokens
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{llm: llm, policy: policy, timeout: timeout, metrics: m, log: log}
}

// Evaluate sends the policy and transcript in one request. There are no
// retries: a failed round is reported and the caller decides what to do.
func (c *Client) Evaluate(ctx context.Context, transcript []Turn) (Verdict, error) {
	if len(transcript) == 0 {
		return Verdict{}, apperr.Validation("transcript is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.generate(ctx, c.buildRequest(transcript))
	c.metrics.ObserveQualification(time.Since(start))
	if err != nil {
		kind := FailureUnavailable
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		c.metrics.RecordQualificationFailure(kind)
		return Verdict{}, apperr.Wrap(apperr.KindUnavailable, msgUnavailable, fmt.Errorf("%w: %w", ErrUnavailable, err)).WithOp(kind)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		c.metrics.RecordQualificationFailure(FailureFormat)
		c.log.Debug("qualification output rejected", "error", err, "raw", raw)
		return Verdict{}, apperr.Wrap(apperr.KindBadGateway, msgInvalidOutput, fmt.Errorf("%w: %w", ErrFormat, err)).WithOp(FailureFormat)
	}
	return verdict, nil
}

func (c *Client) buildRequest(transcript []Turn) *model.LLMRequest {
	temperature := float32(c.policy.Temperature)
	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(c.policy.SystemPrompt)},
			},
			Temperature:      &temperature,
			MaxOutputTokens:  int32(c.policy.MaxTokens),
			ResponseMIMEType: jsonMIMEType,
		},
		Contents: make([]*genai.Content, 0, len(transcript)),
	}
	for _, turn := range transcript {
		role := genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		req.Contents = append(req.Contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(turn.Content)},
		})
	}
	return req
}

func (c *Client) generate(ctx context.Context, req *model.LLMRequest) (string, error) {
	var b strings.Builder
	for resp, err := range c.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FailureKind classifies an Evaluate error for logs and metrics.
func FailureKind(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Op != "" {
		return appErr.Op
	}
	if errors.Is(err, ErrFormat) {
		return FailureFormat
	}
	return FailureUnavailable
}
