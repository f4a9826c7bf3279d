// Package service records labelled conversations and exports them as
// chat-format JSONL for model fine-tuning.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"lead_intake_backend/internal/adapters/storage"
	"lead_intake_backend/internal/finetuning/ports"
	"lead_intake_backend/internal/finetuning/repository"
	"lead_intake_backend/internal/finetuning/transport"
	"lead_intake_backend/platform/apperr"
	"lead_intake_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	ExportContentType = "application/x-ndjson"
	ExportFileName    = "fine-tuning-data.jsonl"
	exportFolder      = "exports"
)

type Service struct {
	repo        repository.Repository
	transcripts ports.TranscriptReader
	storage     storage.StorageService
	bucket      string
	log         *logger.Logger
}

// New creates the service. store may be nil, in which case archives are
// reported as unavailable.
func New(repo repository.Repository, transcripts ports.TranscriptReader, store storage.StorageService, bucket string, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		transcripts: transcripts,
		storage:     store,
		bucket:      bucket,
		log:         log,
	}
}

// Record stores a manually labelled sample.
func (s *Service) Record(ctx context.Context, req transport.RecordRequest) (transport.RecordResponse, error) {
	params := repository.InsertParams{
		ConversationID: req.ConversationID,
		Messages:       make([]repository.ChatMessage, 0, len(req.Messages)),
		Outcome:        parseOutcome(derefString(req.Outcome)),
		Feedback:       req.Feedback,
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, repository.ChatMessage{Role: m.Role, Content: m.Content})
	}

	rec, err := s.repo.Insert(ctx, params)
	if err != nil {
		s.log.DatabaseError("finetuning.Record", err)
		return transport.RecordResponse{}, apperr.Wrap(apperr.KindInternal, "failed to store training data", err).WithOp("finetuning.Record")
	}
	return transport.RecordResponse{Success: true, Record: transport.ToRecordDTO(rec)}, nil
}

// List returns a page of samples together with the overall stats.
func (s *Service) List(ctx context.Context, req transport.DataRequest) (transport.DataResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	limit = min(limit, repository.MaxListLimit)
	outcome := parseOutcome(req.Outcome)

	var (
		records []repository.Record
		stats   repository.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.repo.List(gctx, outcome, limit, req.Offset)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.repo.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.DataResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load training data", err).WithOp("finetuning.List")
	}

	data := make([]transport.RecordDTO, 0, len(records))
	for _, r := range records {
		data = append(data, transport.ToRecordDTO(r))
	}
	return transport.DataResponse{
		Data:       data,
		Stats:      transport.ToStatsDTO(stats),
		Pagination: transport.Pagination{Limit: limit, Offset: req.Offset},
	}, nil
}

func (s *Service) Stats(ctx context.Context) (transport.StatsDTO, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return transport.StatsDTO{}, apperr.Wrap(apperr.KindInternal, "failed to load training stats", err).WithOp("finetuning.Stats")
	}
	return transport.ToStatsDTO(stats), nil
}

// ExportJSONL writes one chat-format line per sample and returns the number
// of lines written.
func (s *Service) ExportJSONL(ctx context.Context, outcome string, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	count := 0
	err := s.repo.Each(ctx, parseOutcome(outcome), func(r repository.Record) error {
		line := transport.ExportLine{Messages: r.Messages}
		if r.Outcome != nil {
			o := string(*r.Outcome)
			line.Metadata.Outcome = &o
		}
		line.Metadata.Feedback = r.Feedback
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write export line: %w", err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("export samples: %w", err)
	}
	return count, nil
}

// Archive streams the export into object storage and returns a presigned
// download link.
func (s *Service) Archive(ctx context.Context, outcome string) (transport.ArchiveResponse, error) {
	if s.storage == nil {
		return transport.ArchiveResponse{}, apperr.Unavailable("export storage is not configured")
	}

	pr, pw := io.Pipe()
	var count int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.ExportJSONL(gctx, outcome, pw)
		count = n
		pw.CloseWithError(err)
		return err
	})

	var fileKey string
	g.Go(func() error {
		key, err := s.storage.UploadFile(gctx, s.bucket, exportFolder, ExportFileName, ExportContentType, pr, -1)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		fileKey = key
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("training export archive failed", "error", err)
		return transport.ArchiveResponse{}, apperr.Wrap(apperr.KindUnavailable, "failed to archive training data", err).WithOp("finetuning.Archive")
	}

	link, err := s.storage.GenerateDownloadURL(ctx, s.bucket, fileKey)
	if err != nil {
		if delErr := s.storage.DeleteObject(ctx, s.bucket, fileKey); delErr != nil {
			s.log.Warn("failed to remove unlinked export", "fileKey", fileKey, "error", delErr)
		}
		return transport.ArchiveResponse{}, apperr.Wrap(apperr.KindUnavailable, "failed to sign export download", err).WithOp("finetuning.Archive")
	}

	s.log.Info("training export archived", "fileKey", fileKey, "records", count)
	return transport.ArchiveResponse{
		FileKey:   link.FileKey,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
		Records:   count,
	}, nil
}

// CaptureConversation stores a finished conversation as a sample labelled
// with outcome. A conversation is captured at most once per outcome; the
// bool reports whether a new sample was written.
func (s *Service) CaptureConversation(ctx context.Context, conversationID uuid.UUID, outcome repository.Outcome) (bool, error) {
	if !outcome.Valid() {
		return false, apperr.Validation("invalid outcome")
	}
	messages, err := s.transcripts.LoadChatMessages(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("load transcript %s: %w", conversationID, err)
	}
	if len(messages) == 0 {
		return false, nil
	}

	convID := conversationID
	_, created, err := s.repo.InsertIfAbsent(ctx, repository.InsertParams{
		ConversationID: &convID,
		Messages:       messages,
		Outcome:        &outcome,
	})
	if err != nil {
		return false, fmt.Errorf("capture sample: %w", err)
	}
	return created, nil
}

func parseOutcome(raw string) *repository.Outcome {
	o := repository.Outcome(raw)
	if !o.Valid() {
		return nil
	}
	return &o
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
