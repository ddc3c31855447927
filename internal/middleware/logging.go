package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// StatusObserver receives one observation per completed request.
type StatusObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// LoggingMiddleware logs each request at a level chosen by status class.
// observer may be nil.
func LoggingMiddleware(observer StatusObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			logger := GetLoggerFromContext(r.Context())

			logger.Debug("Request received",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			statusCode := wrapped.statusCode
			logAttrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", statusCode,
				"duration_ms", duration.Milliseconds(),
			}

			switch {
			case statusCode >= 500:
				logger.Error("Request completed with server error", logAttrs...)
			case statusCode >= 400:
				logger.Warn("Request completed with client error", logAttrs...)
			default:
				logger.Info("Request completed successfully", logAttrs...)
			}

			if observer != nil {
				observer.ObserveRequest(r.Method, routePattern(r), statusCode, duration)
			}
		})
	}
}

// routePattern returns the matched chi route, or "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
