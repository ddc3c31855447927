// Package timeline assembles a request's history and archives it to object
// storage once the request is closed.
package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

// Timeline is the full history of one request.
type Timeline struct {
	Request     workflow.Request            `json:"request"`
	Transitions []workflow.TransitionRecord `json:"transitions"`
	Audit       []workflow.AuditEntry       `json:"audit"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// Reader is the subset of workflow.Store needed to build a timeline.
type Reader interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*workflow.Request, error)
	ListTransitions(ctx context.Context, requestID uuid.UUID) ([]workflow.TransitionRecord, error)
	ListAuditEntries(ctx context.Context, requestID uuid.UUID) ([]workflow.AuditEntry, error)
}

func Build(ctx context.Context, r Reader, id uuid.UUID) (*Timeline, error) {
	req, err := r.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	transitions, err := r.ListTransitions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}
	audit, err := r.ListAuditEntries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}
	return &Timeline{
		Request:     *req,
		Transitions: transitions,
		Audit:       audit,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ObjectStore is satisfied by aws.S3Service.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
}

type Archiver struct {
	reader  Reader
	objects ObjectStore
}

func NewArchiver(reader Reader, objects ObjectStore) *Archiver {
	return &Archiver{reader: reader, objects: objects}
}

// Key is the object key of a request's archived timeline.
func Key(id uuid.UUID) string {
	return "timelines/" + id.String() + ".json"
}

// Archive uploads the request's current timeline and returns its key.
func (a *Archiver) Archive(ctx context.Context, id uuid.UUID) (string, error) {
	tl, err := Build(ctx, a.reader, id)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(tl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal timeline: %w", err)
	}
	key := Key(id)
	if err := a.objects.PutObject(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
