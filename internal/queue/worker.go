package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

// EmailSender is satisfied by aws.EmailService.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// TimelineArchiver is satisfied by timeline.Archiver.
type TimelineArchiver interface {
	Archive(ctx context.Context, id uuid.UUID) (string, error)
}

type Worker struct {
	server   *asynq.Server
	email    EmailSender
	archiver TimelineArchiver
}

func NewWorker(cfg *config.RedisConfig, email EmailSender, archiver TimelineArchiver) *Worker {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logging.Error("process task failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	return &Worker{
		server:   server,
		email:    email,
		archiver: archiver,
	}
}

// Mux routes task types to handlers. Archive tasks are only registered when
// an archiver is configured.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, w.HandleEmailDelivery)
	if w.archiver != nil {
		mux.HandleFunc(TypeTimelineArchive, w.HandleTimelineArchive)
	}
	return mux
}

func (w *Worker) Start() error {
	return w.server.Start(w.Mux())
}

func (w *Worker) Close() {
	if w.server != nil {
		w.server.Shutdown()
	}
}

func (w *Worker) HandleEmailDelivery(ctx context.Context, t *asynq.Task) error {
	var p EmailDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	logging.Info("Sending email", "to", p.To, "subject", p.Subject)
	if err := w.email.SendEmail(ctx, p.To, p.Subject, p.Body); err != nil {
		return fmt.Errorf("emailService.SendEmail failed: %w", err)
	}

	return nil
}

func (w *Worker) HandleTimelineArchive(ctx context.Context, t *asynq.Task) error {
	var p TimelineArchivePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	key, err := w.archiver.Archive(ctx, p.RequestID)
	if errors.Is(err, workflow.ErrRequestNotFound) {
		return fmt.Errorf("request %s not found: %w", p.RequestID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("archive timeline for %s: %w", p.RequestID, err)
	}

	logging.Info("Archived request timeline", "request_id", p.RequestID, "key", key)
	return nil
}
