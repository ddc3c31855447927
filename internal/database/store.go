package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

// RequestStore is the Postgres implementation of workflow.Store.
type RequestStore struct {
	db *Database
}

func NewRequestStore(db *Database) *RequestStore {
	return &RequestStore{db: db}
}

var _ workflow.Store = (*RequestStore)(nil)

const requestColumns = `id, title, description, status, requester_id, version, created_at, updated_at`

func scanRequest(row pgx.Row) (*workflow.Request, error) {
	var (
		r      workflow.Request
		status string
	)
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &status, &r.RequesterID, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = rbac.Status(status)
	return &r, nil
}

func (s *RequestStore) GetRequest(ctx context.Context, id uuid.UUID) (*workflow.Request, error) {
	row := s.db.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workflow.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return r, nil
}

func (s *RequestStore) CreateRequest(ctx context.Context, r *workflow.Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	r.Version = 1

	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO requests (id, title, description, status, requester_id, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Title, r.Description, string(r.Status), r.RequesterID, r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (s *RequestStore) ListRequests(ctx context.Context, requesterID string) ([]workflow.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	if requesterID != "" {
		query += ` WHERE requester_id = $1`
		args = append(args, requesterID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	out := []workflow.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ApplyTransition updates the status only while it still equals
// rec.FromStatus, and logs the transition in the same transaction.
func (s *RequestStore) ApplyTransition(ctx context.Context, rec workflow.TransitionRecord) (workflow.Ack, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return workflow.Ack{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // rollback if not committed

	var version int64
	err = tx.QueryRow(ctx,
		`UPDATE requests SET status = $3, version = version + 1, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING version`,
		rec.RequestID, string(rec.FromStatus), string(rec.ToStatus), rec.Timestamp).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		lookupErr := tx.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, rec.RequestID).Scan(&current)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return workflow.Ack{}, workflow.ErrRequestNotFound
		}
		if lookupErr != nil {
			return workflow.Ack{}, fmt.Errorf("%w: %w", workflow.ErrStatusConflict, lookupErr)
		}
		return workflow.Ack{}, &workflow.ConflictError{Current: rbac.Status(current)}
	}
	if err != nil {
		return workflow.Ack{}, fmt.Errorf("failed to update request status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO request_transitions (id, request_id, from_status, to_status, acting_role, actor_id, note, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.RequestID, string(rec.FromStatus), string(rec.ToStatus), string(rec.ActingRole),
		rec.ActorID, rec.Note, rec.Description, rec.Timestamp)
	if err != nil {
		return workflow.Ack{}, fmt.Errorf("failed to record transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return workflow.Ack{}, fmt.Errorf("failed to commit transition: %w", err)
	}
	return workflow.Ack{Version: version}, nil
}

func (s *RequestStore) AppendAuditEntry(ctx context.Context, entry workflow.AuditEntry) (workflow.Ack, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	var count int64
	err := s.db.pool.QueryRow(ctx,
		`WITH inserted AS (
		     INSERT INTO audit_log (id, request_id, description, metadata, created_at)
		     VALUES ($1, $2, $3, $4, $5)
		     RETURNING request_id
		 )
		 SELECT count(*) + 1 FROM audit_log WHERE request_id = (SELECT request_id FROM inserted)`,
		entry.ID, entry.RequestID, entry.Description, metadata, entry.CreatedAt).Scan(&count)
	if err != nil {
		return workflow.Ack{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return workflow.Ack{Version: count}, nil
}

func (s *RequestStore) ListTransitions(ctx context.Context, requestID uuid.UUID) ([]workflow.TransitionRecord, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT id, request_id, from_status, to_status, acting_role, actor_id, note, description, created_at
		 FROM request_transitions WHERE request_id = $1 ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	out := []workflow.TransitionRecord{}
	for rows.Next() {
		var (
			rec            workflow.TransitionRecord
			from, to, role string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &from, &to, &role, &rec.ActorID, &rec.Note, &rec.Description, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		rec.FromStatus = rbac.Status(from)
		rec.ToStatus = rbac.Status(to)
		rec.ActingRole = rbac.Role(role)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RequestStore) ListAuditEntries(ctx context.Context, requestID uuid.UUID) ([]workflow.AuditEntry, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT id, request_id, description, metadata, created_at
		 FROM audit_log WHERE request_id = $1 ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := []workflow.AuditEntry{}
	for rows.Next() {
		var e workflow.AuditEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
