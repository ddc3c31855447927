package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	objects map[string][]byte
	err     error
}

func (m *memObjects) PutObject(_ context.Context, key string, body io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = buf.Bytes()
	return nil
}

func seed(t *testing.T) (*workflow.MemoryStore, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	req := &workflow.Request{Title: "Borehole repair", Status: rbac.StatusSubmitted, RequesterID: "u-1"}
	require.NoError(t, store.CreateRequest(ctx, req))

	_, err := store.ApplyTransition(ctx, workflow.TransitionRecord{
		ID:          uuid.New(),
		RequestID:   req.ID,
		FromStatus:  rbac.StatusSubmitted,
		ToStatus:    rbac.StatusAssigned,
		ActingRole:  rbac.RoleProjectOfficer,
		ActorID:     "po-1",
		Description: workflow.Describe(rbac.StatusSubmitted, rbac.StatusAssigned),
	})
	require.NoError(t, err)
	_, err = store.AppendAuditEntry(ctx, workflow.AuditEntry{
		RequestID:   req.ID,
		Description: workflow.Describe(rbac.StatusSubmitted, rbac.StatusAssigned),
	})
	require.NoError(t, err)
	return store, req.ID
}

func TestBuild(t *testing.T) {
	store, id := seed(t)

	tl, err := Build(context.Background(), store, id)
	require.NoError(t, err)
	assert.Equal(t, rbac.StatusAssigned, tl.Request.Status)
	require.Len(t, tl.Transitions, 1)
	require.Len(t, tl.Audit, 1)
	assert.Equal(t, "Request status updated from Submitted to Assigned", tl.Audit[0].Description)
}

func TestBuild_MissingRequest(t *testing.T) {
	_, err := Build(context.Background(), workflow.NewMemoryStore(), uuid.New())
	assert.ErrorIs(t, err, workflow.ErrRequestNotFound)
}

func TestArchive(t *testing.T) {
	store, id := seed(t)
	objects := &memObjects{}

	key, err := NewArchiver(store, objects).Archive(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "timelines/"+id.String()+".json", key)

	var got Timeline
	require.NoError(t, json.Unmarshal(objects.objects[key], &got))
	assert.Equal(t, id, got.Request.ID)
	assert.Len(t, got.Transitions, 1)
}

func TestArchive_UploadFailure(t *testing.T) {
	store, id := seed(t)
	boom := errors.New("s3 unavailable")

	_, err := NewArchiver(store, &memObjects{err: boom}).Archive(context.Background(), id)
	assert.ErrorIs(t, err, boom)
}
