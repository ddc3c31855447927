package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/container"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(&cfg.Logging, "api"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	c, err := container.New(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer c.Cleanup()

	if c.Worker != nil {
		logging.Info("Starting embedded queue worker")
		if err := c.Worker.Start(); err != nil {
			log.Fatalf("Worker failed to start: %v", err)
		}
	}

	handler, err := c.Router()
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Server.Port)
	s := &http.Server{
		Handler:           handler,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logging.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server shutdown failed", "error", err)
		}
	}()

	logging.Info("Server starting", "addr", addr, "identity_mode", cfg.Identity.Mode, "store", cfg.Store.Driver)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("Server failed", "error", err)
		c.Cleanup()
		os.Exit(1)
	}
	logging.Info("Server stopped")
}
