package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of workflow.Store
type MockStore struct {
	mock.Mock
}

// NewMockStore creates a new mock store
func NewMockStore(t *testing.T) *MockStore {
	m := &MockStore{}
	m.Test(t)
	return m
}

func (m *MockStore) GetRequest(ctx context.Context, id uuid.UUID) (*workflow.Request, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*workflow.Request)
	return r, args.Error(1)
}

func (m *MockStore) CreateRequest(ctx context.Context, r *workflow.Request) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockStore) ListRequests(ctx context.Context, requesterID string) ([]workflow.Request, error) {
	args := m.Called(ctx, requesterID)
	rs, _ := args.Get(0).([]workflow.Request)
	return rs, args.Error(1)
}

func (m *MockStore) ApplyTransition(ctx context.Context, rec workflow.TransitionRecord) (workflow.Ack, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(workflow.Ack), args.Error(1)
}

func (m *MockStore) AppendAuditEntry(ctx context.Context, entry workflow.AuditEntry) (workflow.Ack, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(workflow.Ack), args.Error(1)
}

func (m *MockStore) ListTransitions(ctx context.Context, requestID uuid.UUID) ([]workflow.TransitionRecord, error) {
	args := m.Called(ctx, requestID)
	rs, _ := args.Get(0).([]workflow.TransitionRecord)
	return rs, args.Error(1)
}

func (m *MockStore) ListAuditEntries(ctx context.Context, requestID uuid.UUID) ([]workflow.AuditEntry, error) {
	args := m.Called(ctx, requestID)
	es, _ := args.Get(0).([]workflow.AuditEntry)
	return es, args.Error(1)
}

// ExpectApplyTransition sets up expectation for ApplyTransition with any record
func (m *MockStore) ExpectApplyTransition(ack workflow.Ack, err error) *mock.Call {
	return m.On("ApplyTransition", mock.Anything, mock.AnythingOfType("workflow.TransitionRecord")).Return(ack, err)
}

// ExpectAppendAuditEntry sets up expectation for AppendAuditEntry with any entry
func (m *MockStore) ExpectAppendAuditEntry(err error) *mock.Call {
	return m.On("AppendAuditEntry", mock.Anything, mock.AnythingOfType("workflow.AuditEntry")).Return(workflow.Ack{Version: 1}, err)
}

// MockNotifier records applied transitions
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier(t *testing.T) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	return m
}

func (m *MockNotifier) TransitionApplied(ctx context.Context, rec workflow.TransitionRecord) {
	m.Called(ctx, rec)
}

// MockQueue is a mock of the task queue Enqueue method
type MockQueue struct {
	mock.Mock
}

func NewMockQueue(t *testing.T) *MockQueue {
	m := &MockQueue{}
	m.Test(t)
	return m
}

func (m *MockQueue) Enqueue(taskType string, data interface{}) (*asynq.TaskInfo, error) {
	args := m.Called(taskType, data)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

// ExpectEnqueue sets up expectation for Enqueue of a task type
func (m *MockQueue) ExpectEnqueue(taskType string, err error) *mock.Call {
	return m.On("Enqueue", taskType, mock.Anything).Return(&asynq.TaskInfo{Type: taskType}, err)
}
