package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"lead_intake_backend/internal/conversations/repository"
	"lead_intake_backend/internal/scoring"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *repository.Memory) {
	repo := repository.NewMemory()
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	return New(repo, log), repo
}

func TestTranscriptRoundTripPreservesOrderAndContent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	conv, err := svc.Start(ctx, uuid.New(), "tok")
	require.NoError(t, err)

	turns := []struct {
		role    repository.Role
		content string
	}{
		{repository.RoleUser, "Vreau o vacanță în Grecia"},
		{repository.RoleAssistant, "Super! Câte persoane?"},
		{repository.RoleUser, "  patru,\tcu copii  "},
		{repository.RoleAssistant, "🌊⛵"},
	}
	for _, turn := range turns {
		_, err := svc.AppendTurn(ctx, conv.ID, turn.role, turn.content, repository.Metadata{})
		require.NoError(t, err)
	}

	msgs, err := svc.LoadTranscript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, len(turns))
	for i, turn := range turns {
		assert.Equal(t, turn.role, msgs[i].Role)
		assert.Equal(t, turn.content, msgs[i].Content)
	}
}

func TestAppendTurnToMissingConversationIsPersistenceError(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AppendTurn(context.Background(), uuid.New(), repository.RoleUser, "hi", repository.Metadata{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, repository.ErrConversationMissing)
}

func TestAppendTurnRejectsInconsistentMetadata(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	conv, err := svc.Start(ctx, uuid.New(), "tok")
	require.NoError(t, err)

	_, err = svc.AppendTurn(ctx, conv.ID, repository.RoleAssistant, "x", repository.Metadata{Kind: repository.MetadataScoring})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.AppendTurn(ctx, conv.ID, "system", "x", repository.Metadata{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	snap := repository.ScoringMetadata(repository.ScoringSnapshot{
		AggregateScore: 60,
		Factors:        scoring.Factors{Budget: 60, Timeline: 60, NeedAlignment: 60, Engagement: 60, Authority: 60},
	})
	_, err = svc.AppendTurn(ctx, conv.ID, repository.RoleAssistant, "ok", snap)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.MessageCount())
}

func TestGetWithMessagesNotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetWithMessages(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMarkEndedAndFindBySessionToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	conv, err := svc.Start(ctx, uuid.New(), "tok-1")
	require.NoError(t, err)

	found, ok, err := svc.FindBySessionToken(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, conv.ID, found.ID)

	_, ok, err = svc.FindBySessionToken(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, apperr.Is(svc.MarkEnded(ctx, conv.ID, repository.StatusActive), apperr.KindValidation))
	require.NoError(t, svc.MarkEnded(ctx, conv.ID, repository.StatusCompleted))

	got, err := svc.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCompleted, got.Status)
	assert.NotNil(t, got.EndTime)
}
