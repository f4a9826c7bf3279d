package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_intake_backend/internal/adapters"
	convrepo "lead_intake_backend/internal/conversations/repository"
	convsvc "lead_intake_backend/internal/conversations/service"
	"lead_intake_backend/internal/email"
	ftrepo "lead_intake_backend/internal/finetuning/repository"
	ftsvc "lead_intake_backend/internal/finetuning/service"
	"lead_intake_backend/internal/followup"
	leadrepo "lead_intake_backend/internal/leads/repository"
	leadsvc "lead_intake_backend/internal/leads/service"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/platform/ai/chatcompletions"
	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/db"
	"lead_intake_backend/platform/logger"
	"lead_intake_backend/platform/metrics"
	"lead_intake_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	// Worker-side wiring only: no HTTP handlers and no event bus.
	m := metrics.New()
	convos := convsvc.New(convrepo.New(pool), log)
	leadService := leadsvc.New(leadrepo.New(pool), adapters.NewLeadConversationCloser(convos), nil, validator.New(), m, log, cfg.GetPhoneDefaultRegion())
	samples := ftsvc.New(ftrepo.New(pool), adapters.NewFineTuningTranscriptReader(convos), nil, cfg.GetMinioBucketTrainingExports(), log)

	processor := followup.NewProcessor(
		leadService,
		samples,
		initNoteWriter(cfg, log),
		email.NewSender(cfg, log),
		cfg.GetSalesTeamEmail(),
		m,
		log,
	)

	worker, err := scheduler.NewWorker(cfg, processor, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func initNoteWriter(cfg config.QualificationConfig, log *logger.Logger) followup.NoteWriter {
	if cfg.GetLLMAPIKey() == "" {
		log.Warn("LLM_API_KEY not configured; sales follow-up notes disabled")
		return nil
	}
	modelName := cfg.GetFollowUpModel()
	if modelName == "" {
		modelName = cfg.GetLLMModel()
	}
	writer, err := followup.NewAgentNoteWriter(chatcompletions.NewModel(chatcompletions.Config{
		APIKey:  cfg.GetLLMAPIKey(),
		BaseURL: cfg.GetLLMBaseURL(),
		Model:   modelName,
	}))
	if err != nil {
		log.Error("failed to initialize follow-up note writer", "error", err)
		return nil
	}
	return writer
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
