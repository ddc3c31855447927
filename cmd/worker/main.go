package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/reliefdesk/reliefdesk-backend/internal/aws"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
	"github.com/reliefdesk/reliefdesk-backend/internal/timeline"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(&cfg.Logging, "worker"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	emailSvc, err := aws.NewEmailService(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	logging.Info("Verifying sender identity", "email", emailSvc.Sender())
	if _, err := emailSvc.VerifyEmailIdentity(ctx); err != nil {
		logging.Error("Failed to verify email identity", "error", err)
	}

	// Archive tasks need the request history; without a database the worker
	// only delivers email.
	var archiver queue.TimelineArchiver
	if cfg.Store.Driver == config.StoreDriverPostgres {
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		s3Service, err := aws.NewS3Service(ctx, cfg.AWS)
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		if cfg.AWS.EndpointURL != "" {
			if err := s3Service.EnsureBucket(ctx); err != nil {
				logging.Info("S3 bucket creation attempted", "bucket", cfg.AWS.Bucket, "result", err)
			}
		}
		archiver = timeline.NewArchiver(database.NewRequestStore(db), s3Service)
	} else {
		logging.Warn("No database configured; timeline archive tasks will not be processed")
	}

	worker := queue.NewWorker(&cfg.Redis, emailSvc, archiver)

	logging.Info("Starting queue worker...")
	if err := worker.Start(); err != nil {
		log.Fatalf("Worker failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("Shutting down worker...")
	worker.Close()
}
