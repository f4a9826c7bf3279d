package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_intake_backend/internal/adapters"
	"lead_intake_backend/internal/adapters/storage"
	"lead_intake_backend/internal/chat"
	"lead_intake_backend/internal/conversations"
	"lead_intake_backend/internal/email"
	"lead_intake_backend/internal/finetuning"
	"lead_intake_backend/internal/followup"
	apphttp "lead_intake_backend/internal/http"
	"lead_intake_backend/internal/http/router"
	"lead_intake_backend/internal/leads"
	"lead_intake_backend/internal/qualification"
	"lead_intake_backend/internal/scheduler"
	"lead_intake_backend/internal/session"
	"lead_intake_backend/migrations"
	"lead_intake_backend/platform/ai/chatcompletions"
	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/db"
	"lead_intake_backend/platform/events"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, migrations.FS, migrations.Dir); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	m := metrics.New()
	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	sessionKV := initSessionCache(ctx, cfg, log, m)

	followUpQueue, closeQueue := initFollowUpQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	storageSvc := initStorage(ctx, cfg, log)

	policy, err := qualification.LoadPolicy(cfg.GetQualificationPolicyFile())
	if err != nil {
		log.Error("failed to load qualification policy", "error", err)
		panic("failed to load qualification policy: " + err.Error())
	}
	log.Info("qualification policy loaded", "policy", policy.Name)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	conversationsModule := conversations.NewModule(pool, log)
	convos := conversationsModule.Service()

	leadsModule := leads.NewModule(pool, adapters.NewLeadConversationCloser(convos), eventBus, val, cfg, m, log)

	fineTuningModule := finetuning.NewModule(
		pool,
		adapters.NewFineTuningTranscriptReader(convos),
		storageSvc,
		cfg.GetMinioBucketTrainingExports(),
		val,
		log,
	)

	evaluator := qualification.NewClient(
		chatcompletions.NewModel(chatcompletions.Config{
			APIKey:  cfg.GetLLMAPIKey(),
			BaseURL: cfg.GetLLMBaseURL(),
			Model:   cfg.GetLLMModel(),
		}),
		policy,
		qualification.Options{
			Timeout:     cfg.GetQualificationTimeout(),
			Temperature: cfg.GetLLMTemperature(),
			MaxTokens:   cfg.GetLLMMaxTokens(),
		},
		m,
		log,
	)

	resolver := session.NewResolver(
		session.NewStore(sessionKV),
		adapters.NewSessionLeadResolver(leadsModule.Service()),
		adapters.NewSessionConversationLinker(convos),
		cfg.GetSessionTTL(),
	)
	chatModule := chat.NewModule(resolver, convos, leadsModule.Service(), evaluator, val, m, log)

	// Outcome events go to the worker queue; without Redis they are handled here.
	processor := followup.NewProcessor(
		leadsModule.Service(),
		fineTuningModule.Service(),
		initNoteWriter(cfg, log),
		email.NewSender(cfg, log),
		cfg.GetSalesTeamEmail(),
		m,
		log,
	)
	followup.NewSubscriber(followUpQueue, processor, log).Register(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Health: []apphttp.NamedCheck{
			{Name: "database", Check: pool},
			{Name: "sessionCache", Check: sessionKV, Optional: true},
		},
		Modules: []apphttp.Module{
			conversationsModule,
			leadsModule,
			chatModule,
			fineTuningModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initSessionCache returns Redis behind the in-memory fallback, or the
// fallback alone when the cache is disabled or unreachable at startup.
func initSessionCache(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *session.FallbackKV {
	if !cfg.IsSessionCacheEnabled() {
		log.Warn("session cache disabled; sessions are kept in memory")
		return session.NewFallbackKV(nil, session.NewMemoryKV(), log, m)
	}

	redisKV, err := session.NewRedisKVFromURL(ctx, cfg.GetRedisURL())
	if err != nil {
		log.CacheDegraded("connect", err)
		return session.NewFallbackKV(nil, session.NewMemoryKV(), log, m)
	}
	log.Info("session cache connected")
	return session.NewFallbackKV(redisKV, session.NewMemoryKV(), log, m)
}

func initFollowUpQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.FollowUpScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; follow-ups run in-process")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize follow-up queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initStorage returns nil when MinIO is not configured; archive exports
// then answer 503.
func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.StorageService {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; export archives disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	bucket := cfg.GetMinioBucketTrainingExports()
	if err := withRetry(ctx, log, "ensure training-exports bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "trainingExportsBucket", bucket)
	return storageSvc
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
		return fmt.Errorf("%s: invalid retry attempts", name)
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
