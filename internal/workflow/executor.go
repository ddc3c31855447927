package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

// Transition outcomes reported to the Observer.
const (
	OutcomeApplied  = "applied"
	OutcomeDenied   = "denied"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Notifier is told about applied transitions. It must not block for long
// and reports its own failures.
type Notifier interface {
	TransitionApplied(ctx context.Context, rec TransitionRecord)
}

// Observer counts transition outcomes.
type Observer interface {
	ObserveTransition(outcome string)
}

type Executor struct {
	store    Store
	guard    *access.Guard
	notifier Notifier
	observer Observer
	now      func() time.Time
	timeout  time.Duration
}

type Option func(*Executor)

func WithNotifier(n Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithClock overrides the timestamp source for records.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithTimeout bounds each store call. Zero leaves the caller's deadline
// untouched.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func NewExecutor(store Store, guard *access.Guard, opts ...Option) *Executor {
	e := &Executor{
		store: store,
		guard: guard,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestTransition checks the actor against the transition table and, if
// permitted, persists the change. It returns a record only after the store
// confirmed the write. Failures are *rbac.Error values; nothing is retried.
func (e *Executor) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionRecord, error) {
	decision := e.guard.Decide(req.Actor, nil, access.Context{
		CurrentStatus: req.CurrentStatus,
		TargetStatus:  req.TargetStatus,
	})
	if !decision.Allowed() {
		e.observe(OutcomeDenied)
		return nil, e.withStoredStatus(ctx, req.RequestID, decision.Err())
	}
	if strings.TrimSpace(req.TargetStatus) == "" {
		e.observe(OutcomeDenied)
		return nil, e.withStoredStatus(ctx, req.RequestID, rbac.NewError(rbac.CodeIllegalTransition, "target status is required"))
	}

	role, _ := rbac.Normalize(req.Actor.Role)
	from, _ := rbac.ParseStatus(req.CurrentStatus)
	to, _ := rbac.ParseStatus(req.TargetStatus)

	rec := TransitionRecord{
		ID:          uuid.New(),
		RequestID:   req.RequestID,
		FromStatus:  from,
		ToStatus:    to,
		ActingRole:  role,
		ActorID:     req.Actor.UserID,
		Note:        req.Note,
		Timestamp:   e.now(),
		Description: Describe(from, to),
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	ack, err := e.store.ApplyTransition(storeCtx, rec)
	if err != nil {
		return nil, e.persistenceError(ctx, rec, err)
	}

	if _, err := e.store.AppendAuditEntry(storeCtx, AuditEntry{
		RequestID:   rec.RequestID,
		Description: rec.Description,
		Metadata: map[string]any{
			"transition_id": rec.ID.String(),
			"from_status":   string(rec.FromStatus),
			"to_status":     string(rec.ToStatus),
			"acting_role":   string(rec.ActingRole),
			"actor_id":      rec.ActorID,
			"version":       ack.Version,
		},
		CreatedAt: rec.Timestamp,
	}); err != nil {
		logging.Warn("Failed to append audit entry", "request_id", rec.RequestID, "transition_id", rec.ID, "error", err)
	}

	e.observe(OutcomeApplied)
	logging.Info("Request transition applied",
		"request_id", rec.RequestID,
		"from", rec.FromStatus,
		"to", rec.ToStatus,
		"role", rec.ActingRole,
		"version", ack.Version)

	if e.notifier != nil {
		e.notifier.TransitionApplied(context.WithoutCancel(ctx), rec)
	}
	return &rec, nil
}

// withStoredStatus replaces the caller's claimed status on an illegal
// transition with the one the store holds, so the client can retry from it.
// Lookup failures leave err unchanged.
func (e *Executor) withStoredStatus(ctx context.Context, id uuid.UUID, err error) error {
	var rerr *rbac.Error
	if id == uuid.Nil || !errors.As(err, &rerr) || rerr.Code != rbac.CodeIllegalTransition {
		return err
	}
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	r, getErr := e.store.GetRequest(storeCtx, id)
	if getErr != nil {
		return err
	}
	rerr.CurrentStatus = r.Status
	return rerr
}

func (e *Executor) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Executor) persistenceError(ctx context.Context, rec TransitionRecord, err error) error {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		e.observe(OutcomeConflict)
		return &rbac.Error{
			Code:          rbac.CodeConcurrentModification,
			Message:       fmt.Sprintf("request is now %s; refresh and try again", conflict.Current.Label()),
			CurrentStatus: conflict.Current,
			Cause:         err,
		}
	case errors.Is(err, ErrStatusConflict):
		e.observe(OutcomeConflict)
		current := rbac.StatusUnknown
		if r, getErr := e.store.GetRequest(ctx, rec.RequestID); getErr == nil {
			current = r.Status
		}
		return &rbac.Error{
			Code:          rbac.CodeConcurrentModification,
			Message:       "request changed while updating; refresh and try again",
			CurrentStatus: current,
			Cause:         err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		e.observe(OutcomeFailed)
		logging.Error("Request transition timed out", "request_id", rec.RequestID, "error", err)
		return &rbac.Error{
			Code:    rbac.CodePersistenceFailed,
			Message: "store did not respond in time",
			Cause:   fmt.Errorf("%w: %w", rbac.ErrTimeout, err),
		}
	default:
		e.observe(OutcomeFailed)
		logging.Error("Request transition failed", "request_id", rec.RequestID, "error", err)
		return &rbac.Error{
			Code:    rbac.CodePersistenceFailed,
			Message: "could not save status change",
			Cause:   err,
		}
	}
}

func (e *Executor) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveTransition(outcome)
	}
}
