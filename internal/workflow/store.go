package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

var (
	ErrStatusConflict  = errors.New("request status changed concurrently")
	ErrRequestNotFound = errors.New("request not found")
)

// ConflictError is returned by ApplyTransition when the stored status no
// longer matches the record's FromStatus. It matches ErrStatusConflict.
type ConflictError struct {
	Current rbac.Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: current status is %s", ErrStatusConflict, e.Current)
}

func (e *ConflictError) Unwrap() error {
	return ErrStatusConflict
}

// Store persists requests and their history. ApplyTransition must update
// the status only if it still equals rec.FromStatus and must append the
// transition log entry in the same write; concurrent calls for one request
// have at most one winner.
type Store interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	CreateRequest(ctx context.Context, r *Request) error
	ListRequests(ctx context.Context, requesterID string) ([]Request, error)
	ApplyTransition(ctx context.Context, rec TransitionRecord) (Ack, error)
	AppendAuditEntry(ctx context.Context, entry AuditEntry) (Ack, error)
	ListTransitions(ctx context.Context, requestID uuid.UUID) ([]TransitionRecord, error)
	ListAuditEntries(ctx context.Context, requestID uuid.UUID) ([]AuditEntry, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu          sync.Mutex
	requests    map[uuid.UUID]*Request
	transitions map[uuid.UUID][]TransitionRecord
	audit       map[uuid.UUID][]AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:    make(map[uuid.UUID]*Request),
		transitions: make(map[uuid.UUID][]TransitionRecord),
		audit:       make(map[uuid.UUID][]AuditEntry),
	}
}

func (s *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, r *Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	r.Version = 1

	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, requesterID string) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if requesterID != "" && r.RequesterID != requesterID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, rec TransitionRecord) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[rec.RequestID]
	if !ok {
		return Ack{}, ErrRequestNotFound
	}
	if r.Status != rec.FromStatus {
		return Ack{}, &ConflictError{Current: r.Status}
	}

	r.Status = rec.ToStatus
	r.Version++
	r.UpdatedAt = rec.Timestamp
	s.transitions[rec.RequestID] = append(s.transitions[rec.RequestID], rec)
	return Ack{Version: r.Version}, nil
}

func (s *MemoryStore) AppendAuditEntry(ctx context.Context, entry AuditEntry) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.audit[entry.RequestID] = append(s.audit[entry.RequestID], entry)
	return Ack{Version: int64(len(s.audit[entry.RequestID]))}, nil
}

func (s *MemoryStore) ListTransitions(ctx context.Context, requestID uuid.UUID) ([]TransitionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]TransitionRecord{}, s.transitions[requestID]...), nil
}

func (s *MemoryStore) ListAuditEntries(ctx context.Context, requestID uuid.UUID) ([]AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]AuditEntry{}, s.audit[requestID]...), nil
}
