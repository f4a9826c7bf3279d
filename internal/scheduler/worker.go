package scheduler

import (
	"context"
	"fmt"

	"lead_intake_backend/platform/config"
	"lead_intake_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// FollowUpHandler processes one lead outcome follow-up.
type FollowUpHandler interface {
	HandleLeadFollowUp(ctx context.Context, payload LeadOutcomeFollowUpPayload) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	followUp FollowUpHandler
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, followUp FollowUpHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		followUp: followUp,
		log:      log,
	}
	w.mux.HandleFunc(TaskLeadOutcomeFollowUp, w.handleLeadOutcomeFollowUp)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleLeadOutcomeFollowUp(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadOutcomeFollowUpPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if _, _, err := payload.IDs(); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.followUp.HandleLeadFollowUp(ctx, payload)
}
