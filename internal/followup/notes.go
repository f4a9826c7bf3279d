package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"lead_intake_backend/internal/scoring"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	noteAppName   = "sales-followup-writer"
	noteMaxTokens = 512
)

// NoteInput is the lead data handed to the note writer.
type NoteInput struct {
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	Company           string         `json:"company,omitempty"`
	Phone             string         `json:"phone,omitempty"`
	Source            string         `json:"source,omitempty"`
	Score             int            `json:"qualificationScore"`
	Status            string         `json:"qualificationStatus"`
	ScoringFactors    scoring.Factors `json:"scoringFactors"`
	ConversationCount int            `json:"conversationCount"`
	TotalMessages     int            `json:"totalMessages"`
}

// NoteWriter drafts a short follow-up note for the sales team.
type NoteWriter interface {
	WriteNote(ctx context.Context, input NoteInput) (string, error)
}

// AgentNoteWriter drafts notes with a tool-less ADK agent.
type AgentNoteWriter struct {
	runner         *runner.Runner
	sessionService session.Service
	runMu          sync.Mutex
}

func NewAgentNoteWriter(llm model.LLM) (*AgentNoteWriter, error) {
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "SalesFollowUpWriter",
		Model:       llm,
		Description: "Drafts brief follow-up notes for qualified sailing holiday leads.",
		Instruction: "You write brief follow-up emails or notes for a sales team. Keep it under 150 words, " +
			"mention group size, dates, budget and destination when known, and end with a concrete next step.",
		GenerateContentConfig: &genai.GenerateContentConfig{
			MaxOutputTokens: noteMaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create follow-up agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        noteAppName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create follow-up runner: %w", err)
	}

	return &AgentNoteWriter{runner: r, sessionService: sessionService}, nil
}

func (w *AgentNoteWriter) WriteNote(ctx context.Context, input NoteInput) (string, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("follow-up note: encode input: %w", err)
	}

	userID := "lead-" + input.Email
	sessionID := uuid.New().String()
	_, err = w.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   noteAppName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("follow-up note: create session: %w", err)
	}
	defer func() {
		_ = w.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   noteAppName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{{
			Text: "Based on this lead qualification data, generate a brief follow-up email or note for the sales team:\n\n" + string(data),
		}},
	}

	var out strings.Builder
	for event, err := range w.runner.Run(ctx, userID, sessionID, userMessage, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return "", fmt.Errorf("follow-up note: run failed: %w", err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			out.WriteString(part.Text)
		}
	}

	note := strings.TrimSpace(out.String())
	if note == "" {
		return "", fmt.Errorf("follow-up note: empty response")
	}
	return note, nil
}
