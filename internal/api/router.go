package api

import (
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	nethttpmw "github.com/oapi-codegen/nethttp-middleware"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/middleware"
	"github.com/reliefdesk/reliefdesk-backend/internal/swagger"
)

// RouterOptions configures the HTTP stack around the handlers.
type RouterOptions struct {
	Identity auth.IdentityProvider
	CORS     *config.CORSConfig
	Observer middleware.StatusObserver
	Metrics  http.Handler
}

// NewRouter mounts the operational endpoints and the validated /v1 API.
func NewRouter(s *Server, opts RouterOptions) (http.Handler, error) {
	spec, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	if opts.Identity == nil {
		return nil, errors.New("identity provider is required")
	}

	r := chi.NewMux()
	r.Use(chimw.Recoverer)
	if opts.CORS != nil {
		r.Use(middleware.NewCORSHandler(opts.CORS))
	}
	r.Use(auth.Middleware(opts.Identity))
	r.Use(middleware.RequestContext)
	r.Use(middleware.LoggingMiddleware(opts.Observer))

	r.Get("/health", s.HealthCheck)
	r.Get("/ready", s.ReadinessCheck)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	swagger.Mount(r, spec)

	validator := nethttpmw.OapiRequestValidatorWithOptions(spec, &nethttpmw.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: auth.Authenticate,
		},
		ErrorHandler: s.validationError,
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(validator)

		r.Get("/me/permissions", s.GetMyPermissions)
		r.Get("/roles/{role}/permissions", s.GetRolePermissions)
		r.Get("/transitions", s.ListAllowedTransitions)
		r.Post("/access/decisions", s.EvaluateDecision)

		r.Get("/requests", s.ListRequests)
		r.Post("/requests", s.CreateRequest)
		r.Get("/requests/{id}", s.GetRequest)
		r.Post("/requests/{id}/transitions", s.TransitionRequest)
		r.Get("/requests/{id}/timeline", s.GetRequestTimeline)
		r.Get("/requests/{id}/timeline/archive", s.GetTimelineArchive)

		r.Get("/notifications", s.ListNotifications)
		r.Post("/session/logout", s.Logout)
	})

	return r, nil
}

// validationError renders validator failures in the error envelope. A 401
// carries the same redirect and notice as an unauthenticated guard decision.
func (s *Server) validationError(w http.ResponseWriter, message string, statusCode int) {
	switch statusCode {
	case http.StatusUnauthorized:
		status, b := DecisionErr(s.guard.Decide(access.Identity{}, nil, access.Context{}))
		writeError(w, status, b)
	case http.StatusNotFound:
		writeError(w, statusCode, NewError(CodeResourceNotFound, message))
	case http.StatusBadRequest:
		writeError(w, statusCode, ValidationErr("Request validation failed", []ErrorDetail{{Field: "request", Message: message}}))
	default:
		writeError(w, statusCode, NewError(CodeValidationError, message))
	}
}
