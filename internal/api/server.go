package api

import (
	"context"
	"net/http"

	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/middleware"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

type Server struct {
	store     workflow.Store
	executor  *workflow.Executor
	guard     *access.Guard
	notifier  NotificationService
	observer  DecisionObserver
	archives  ArchiveService
	sessions  SessionRevoker
	readiness map[string]Pinger
}

type Option func(*Server)

func WithNotifications(n NotificationService) Option {
	return func(s *Server) { s.notifier = n }
}

func WithDecisionObserver(o DecisionObserver) Option {
	return func(s *Server) { s.observer = o }
}

func WithArchives(a ArchiveService) Option {
	return func(s *Server) { s.archives = a }
}

func WithSessions(r SessionRevoker) Option {
	return func(s *Server) { s.sessions = r }
}

// WithReadinessCheck adds a dependency reported by /ready.
func WithReadinessCheck(name string, p Pinger) Option {
	return func(s *Server) { s.readiness[name] = p }
}

func NewServer(store workflow.Store, executor *workflow.Executor, guard *access.Guard, opts ...Option) *Server {
	s := &Server{
		store:     store,
		executor:  executor,
		guard:     guard,
		readiness: make(map[string]Pinger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decide runs the guard for the caller, counts the decision and hands any
// notice to the notification service.
func (s *Server) decide(ctx context.Context, req *access.Requirement, tc access.Context) (access.Identity, access.Decision) {
	id := auth.IdentityFromContext(ctx)
	d := s.guard.Decide(id, req, tc)
	if s.observer != nil {
		s.observer.ObserveDecision(d)
	}
	if d.Notice != nil && s.notifier != nil && id.UserID != "" {
		s.notifier.Notify(ctx, id.UserID, *d.Notice)
	}
	if !d.Allowed() {
		middleware.GetLoggerFromContext(ctx).Info("Access decision",
			"kind", d.Kind,
			"reason", d.Reason,
			"requirement", req.String())
	}
	return id, d
}

// authorize writes the error response and returns false unless the caller
// meets req.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, req *access.Requirement) (access.Identity, bool) {
	id, d := s.decide(r.Context(), req, access.Context{})
	if !d.Allowed() {
		status, b := DecisionErr(d)
		writeError(w, status, b)
		return id, false
	}
	return id, true
}
