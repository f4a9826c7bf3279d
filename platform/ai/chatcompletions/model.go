// Package chatcompletions adapts any OpenAI-compatible /chat/completions
// endpoint to the ADK model.LLM interface.
package chatcompletions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
)

// Config for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the default client. Tests point it at httptest servers.
	HTTPClient *http.Client
}

// Model implements model.LLM over the chat completions wire format.
type Model struct {
	config Config
	client *http.Client
}

var _ model.LLM = (*Model)(nil)

func NewModel(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Model{config: cfg, client: client}
}

func (m *Model) Name() string {
	return m.config.Model
}

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completions returned %d: %s", e.StatusCode, e.Body)
}

// GenerateContent performs a single non-streaming completion.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int32           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error interface{} `json:"error"`
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	body := m.buildRequest(req)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("chat completions error: %v", result.Error)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completions error: empty choices")
	}

	choice := result.Choices[0]
	parts := make([]*genai.Part, 0, 1)
	if strings.TrimSpace(choice.Message.Content) != "" {
		parts = append(parts, genai.NewPartFromText(choice.Message.Content))
	}

	out := &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
		TurnComplete: true,
	}
	if choice.FinishReason == "length" {
		out.FinishReason = genai.FinishReasonMaxTokens
	}
	if result.Usage != nil {
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     result.Usage.PromptTokens,
			CandidatesTokenCount: result.Usage.CompletionTokens,
			TotalTokenCount:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (m *Model) buildRequest(req *model.LLMRequest) completionRequest {
	body := completionRequest{Model: m.config.Model}
	if req == nil {
		return body
	}
	if req.Model != "" {
		body.Model = req.Model
	}

	if cfg := req.Config; cfg != nil {
		if sys := contentText(cfg.SystemInstruction); sys != "" {
			body.Messages = append(body.Messages, message{Role: "system", Content: sys})
		}
		if cfg.Temperature != nil {
			t := float64(*cfg.Temperature)
			body.Temperature = &t
		}
		if cfg.MaxOutputTokens > 0 {
			body.MaxTokens = cfg.MaxOutputTokens
		}
		if cfg.ResponseMIMEType == "application/json" {
			body.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	for _, content := range req.Contents {
		text := contentText(content)
		if text == "" {
			continue
		}
		body.Messages = append(body.Messages, message{Role: roleForContent(content.Role), Content: text})
	}
	return body
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return "assistant"
	}
	return "user"
}

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
