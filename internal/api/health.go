package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/reliefdesk/reliefdesk-backend/internal/middleware"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	logger.Debug("Health check requested")

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// Returns 200 if ready, 503 if not ready.
func (s *Server) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	logger.Debug("Readiness check requested")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.readiness))
	for name := range s.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := s.readiness[name].Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", "dependency", name, "error", err)
			checks[name] = "failed: " + err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "not_ready",
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		})
		return
	}

	logger.Debug("Readiness check passed")
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}
