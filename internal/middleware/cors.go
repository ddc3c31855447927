package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
)

// NewCORSHandler builds the CORS middleware. The request id header is
// always exposed so browser clients can quote it in bug reports.
func NewCORSHandler(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	exposed := slices.Clone(cfg.ExposedHeaders)
	if !slices.Contains(exposed, RequestIDHeader) {
		exposed = append(exposed, RequestIDHeader)
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   exposed,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
