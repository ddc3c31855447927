package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveTransition(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func actor(role string) access.Identity {
	return access.Identity{IsAuthenticated: true, Role: role, UserID: role + "-1"}
}

func seedRequest(t *testing.T, store *workflow.MemoryStore, status rbac.Status) uuid.UUID {
	t.Helper()
	r := &workflow.Request{Title: "Food parcel", Status: status, RequesterID: "user-1"}
	require.NoError(t, store.CreateRequest(context.Background(), r))
	return r.ID
}

func newExecutor(store workflow.Store, opts ...workflow.Option) *workflow.Executor {
	opts = append([]workflow.Option{workflow.WithClock(func() time.Time { return fixedNow })}, opts...)
	return workflow.NewExecutor(store, access.NewGuard("", ""), opts...)
}

func TestExecutor_AppliesPermittedTransition(t *testing.T) {
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusSubmitted)
	obs := &countingObserver{}
	exec := newExecutor(store, workflow.WithObserver(obs))

	rec, err := exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID:     id,
		CurrentStatus: "submitted",
		TargetStatus:  "assigned",
		Actor:         actor("director"),
		Note:          "assigning to field team",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, id, rec.RequestID)
	assert.Equal(t, rbac.StatusSubmitted, rec.FromStatus)
	assert.Equal(t, rbac.StatusAssigned, rec.ToStatus)
	assert.Equal(t, rbac.RoleDirector, rec.ActingRole)
	assert.Equal(t, "director-1", rec.ActorID)
	assert.Equal(t, "assigning to field team", rec.Note)
	assert.Equal(t, fixedNow, rec.Timestamp)
	assert.Equal(t, "Request status updated from Submitted to Assigned", rec.Description)

	stored, err := store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rbac.StatusAssigned, stored.Status)
	assert.Equal(t, int64(2), stored.Version)

	log, err := store.ListTransitions(ctx, id)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, *rec, log[0])

	audit, err := store.ListAuditEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, rec.Description, audit[0].Description)
	assert.Equal(t, "director", audit[0].Metadata["acting_role"])

	assert.Equal(t, 1, obs.outcomes[workflow.OutcomeApplied])
}

func TestExecutor_RoundTripThenIllegalForRegularUser(t *testing.T) {
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusSubmitted)
	exec := newExecutor(store)

	_, err := exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "submitted", TargetStatus: "assigned", Actor: actor("director"),
	})
	require.NoError(t, err)

	_, err = exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "assigned", TargetStatus: "submitted", Actor: actor("user"),
	})
	require.Error(t, err)
	assert.True(t, rbac.IsCode(err, rbac.CodeIllegalTransition))

	var e *rbac.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, rbac.StatusAssigned, e.CurrentStatus)

	stored, err := store.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rbac.StatusAssigned, stored.Status, "denied transition must not change status")

	log, err := store.ListTransitions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestExecutor_DenialsHaveNoSideEffects(t *testing.T) {
	tests := []struct {
		name   string
		actor  access.Identity
		from   string
		to     string
		reason rbac.ErrorCode
	}{
		{"unauthenticated", access.Identity{Role: "director"}, "submitted", "assigned", rbac.CodeUnauthenticated},
		{"unknown role", actor("volunteer"), "submitted", "assigned", rbac.CodeUnknownRole},
		{"same status", actor("director"), "submitted", "submitted", rbac.CodeIllegalTransition},
		{"unknown target", actor("admin"), "submitted", "archived", rbac.CodeIllegalTransition},
		{"missing target", actor("director"), "submitted", "", rbac.CodeIllegalTransition},
		{"finance manager is read only", actor("finance_manager"), "manager_review", "approved", rbac.CodeIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStore(t)
			store.On("GetRequest", mock.Anything, mock.Anything).Return(nil, workflow.ErrRequestNotFound).Maybe()
			notifier := testutil.NewMockNotifier(t)
			exec := newExecutor(store, workflow.WithNotifier(notifier))

			rec, err := exec.RequestTransition(context.Background(), workflow.TransitionRequest{
				RequestID: uuid.New(), CurrentStatus: tt.from, TargetStatus: tt.to, Actor: tt.actor,
			})
			assert.Nil(t, rec)
			assert.True(t, rbac.IsCode(err, tt.reason), "got %v", err)

			store.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "AppendAuditEntry", mock.Anything, mock.Anything)
			notifier.AssertNotCalled(t, "TransitionApplied", mock.Anything, mock.Anything)
		})
	}
}

func TestExecutor_IllegalTransitionReportsStoredStatus(t *testing.T) {
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusManagerReview)
	exec := newExecutor(store)

	_, err := exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "submitted", TargetStatus: "approved", Actor: actor("director"),
	})
	var e *rbac.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, rbac.CodeIllegalTransition, e.Code)
	assert.Equal(t, rbac.StatusManagerReview, e.CurrentStatus)

	// retrying from the reported status succeeds
	rec, err := exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: id, CurrentStatus: string(e.CurrentStatus), TargetStatus: "approved", Actor: actor("director"),
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.StatusApproved, rec.ToStatus)

	_, err = exec.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: uuid.New(), CurrentStatus: "submitted", TargetStatus: "approved", Actor: actor("director"),
	})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, rbac.StatusSubmitted, e.CurrentStatus, "unknown request keeps the claimed status")
}

func TestExecutor_AdminBypassesTransitionTable(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusCompleted)

	rec, err := newExecutor(store).RequestTransition(context.Background(), workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "completed", TargetStatus: "submitted", Actor: actor("admin"),
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, rec.ActingRole)
}

func TestExecutor_StaleStatusIsConcurrentModification(t *testing.T) {
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusUnderReview)

	_, err := newExecutor(store).RequestTransition(ctx, workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "assigned", TargetStatus: "under_review", Actor: actor("field_officer"),
	})
	require.Error(t, err)

	var e *rbac.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, rbac.CodeConcurrentModification, e.Code)
	assert.Equal(t, rbac.StatusUnderReview, e.CurrentStatus)
	assert.ErrorIs(t, err, workflow.ErrStatusConflict)
}

func TestExecutor_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusManagerReview)
	exec := newExecutor(store)

	targets := []string{"approved", "rejected"}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			<-start
			_, errs[i] = exec.RequestTransition(ctx, workflow.TransitionRequest{
				RequestID: id, CurrentStatus: "manager_review", TargetStatus: target, Actor: actor("ceo"),
			})
		}(i, target)
	}
	close(start)
	wg.Wait()

	wins := 0
	var loser error
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		loser = err
	}
	require.Equal(t, 1, wins)
	require.Error(t, loser)
	assert.True(t, rbac.IsCode(loser, rbac.CodeConcurrentModification))

	stored, err := store.GetRequest(ctx, id)
	require.NoError(t, err)

	var e *rbac.Error
	require.ErrorAs(t, loser, &e)
	assert.Equal(t, stored.Status, e.CurrentStatus, "loser learns the winner's status")

	log, err := store.ListTransitions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestExecutor_PersistenceFailures(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		store := testutil.NewMockStore(t)
		store.ExpectApplyTransition(workflow.Ack{}, errors.New("connection reset"))
		obs := &countingObserver{}

		rec, err := newExecutor(store, workflow.WithObserver(obs)).RequestTransition(context.Background(), workflow.TransitionRequest{
			RequestID: uuid.New(), CurrentStatus: "submitted", TargetStatus: "assigned", Actor: actor("project_officer"),
		})
		assert.Nil(t, rec)
		assert.True(t, rbac.IsCode(err, rbac.CodePersistenceFailed))
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, 1, obs.outcomes[workflow.OutcomeFailed])
		store.AssertNotCalled(t, "AppendAuditEntry", mock.Anything, mock.Anything)
	})

	t.Run("deadline exceeded is a timeout", func(t *testing.T) {
		store := testutil.NewMockStore(t)
		store.ExpectApplyTransition(workflow.Ack{}, context.DeadlineExceeded)

		_, err := newExecutor(store, workflow.WithTimeout(time.Second)).RequestTransition(context.Background(), workflow.TransitionRequest{
			RequestID: uuid.New(), CurrentStatus: "submitted", TargetStatus: "assigned", Actor: actor("project_officer"),
		})
		assert.True(t, rbac.IsCode(err, rbac.CodePersistenceFailed))
		assert.ErrorIs(t, err, rbac.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("bare conflict looks up the current status", func(t *testing.T) {
		id := uuid.New()
		store := testutil.NewMockStore(t)
		store.ExpectApplyTransition(workflow.Ack{}, workflow.ErrStatusConflict)
		store.On("GetRequest", mock.Anything, id).Return(&workflow.Request{ID: id, Status: rbac.StatusCancelled}, nil)

		_, err := newExecutor(store).RequestTransition(context.Background(), workflow.TransitionRequest{
			RequestID: id, CurrentStatus: "submitted", TargetStatus: "assigned", Actor: actor("project_officer"),
		})

		var e *rbac.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, rbac.CodeConcurrentModification, e.Code)
		assert.Equal(t, rbac.StatusCancelled, e.CurrentStatus)
	})

	t.Run("missing request", func(t *testing.T) {
		store := workflow.NewMemoryStore()
		_, err := newExecutor(store).RequestTransition(context.Background(), workflow.TransitionRequest{
			RequestID: uuid.New(), CurrentStatus: "submitted", TargetStatus: "assigned", Actor: actor("project_officer"),
		})
		assert.True(t, rbac.IsCode(err, rbac.CodePersistenceFailed))
		assert.ErrorIs(t, err, workflow.ErrRequestNotFound)
	})
}

func TestExecutor_AuditFailureDoesNotUndoTransition(t *testing.T) {
	store := testutil.NewMockStore(t)
	store.ExpectApplyTransition(workflow.Ack{Version: 3}, nil)
	store.ExpectAppendAuditEntry(errors.New("audit table locked"))
	notifier := testutil.NewMockNotifier(t)
	notifier.On("TransitionApplied", mock.Anything, mock.AnythingOfType("workflow.TransitionRecord")).Return()

	rec, err := newExecutor(store, workflow.WithNotifier(notifier)).RequestTransition(context.Background(), workflow.TransitionRequest{
		RequestID: uuid.New(), CurrentStatus: "approved", TargetStatus: "completed", Actor: actor("hop"),
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleHeadOfPrograms, rec.ActingRole)
	notifier.AssertNumberOfCalls(t, "TransitionApplied", 1)
}

func TestExecutor_NotifiesAfterSuccess(t *testing.T) {
	store := workflow.NewMemoryStore()
	id := seedRequest(t, store, rbac.StatusForwarded)
	notifier := testutil.NewMockNotifier(t)
	notifier.On("TransitionApplied", mock.Anything, mock.MatchedBy(func(rec workflow.TransitionRecord) bool {
		return rec.RequestID == id && rec.ToStatus == rbac.StatusApproved
	})).Return().Once()

	_, err := newExecutor(store, workflow.WithNotifier(notifier)).RequestTransition(context.Background(), workflow.TransitionRequest{
		RequestID: id, CurrentStatus: "forwarded", TargetStatus: "approved", Actor: actor("patron"),
	})
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Request status updated from Under Review to Additional Info Required",
		workflow.Describe(rbac.StatusUnderReview, rbac.StatusAdditionalInfo))
	assert.Equal(t, workflow.Describe(rbac.StatusApproved, rbac.StatusCompleted),
		workflow.Describe(rbac.StatusApproved, rbac.StatusCompleted))
}
