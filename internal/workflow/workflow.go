// Package workflow applies request status transitions that the access guard
// has approved and records them in an append-only history.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

// Request is a tracked assistance request.
type Request struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      rbac.Status `json:"status"`
	RequesterID string      `json:"requester_id"`
	Version     int64       `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TransitionRequest asks the executor to move a request between statuses.
// CurrentStatus is the status the caller last observed.
type TransitionRequest struct {
	RequestID     uuid.UUID
	CurrentStatus string
	TargetStatus  string
	Actor         access.Identity
	Note          string
}

// TransitionRecord is one entry of a request's transition log.
type TransitionRecord struct {
	ID          uuid.UUID   `json:"id"`
	RequestID   uuid.UUID   `json:"request_id"`
	FromStatus  rbac.Status `json:"from_status"`
	ToStatus    rbac.Status `json:"to_status"`
	ActingRole  rbac.Role   `json:"acting_role"`
	ActorID     string      `json:"actor_id"`
	Note        string      `json:"note,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Description string      `json:"description"`
}

// AuditEntry is a human-readable timeline event.
type AuditEntry struct {
	ID          uuid.UUID      `json:"id"`
	RequestID   uuid.UUID      `json:"request_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Ack confirms a durable write.
type Ack struct {
	Version int64
}

// Describe renders the audit description for a status change.
func Describe(from, to rbac.Status) string {
	return fmt.Sprintf("Request status updated from %s to %s", from.Label(), to.Label())
}
