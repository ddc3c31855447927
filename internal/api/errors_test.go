package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	tu "github.com/reliefdesk/reliefdesk-backend/internal/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
)

func TestWorkflowErr(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		context ErrorContext
	}{
		{
			name:   "forbidden",
			err:    &rbac.Error{Code: rbac.CodeForbidden, Message: "no"},
			status: http.StatusForbidden,
			code:   "FORBIDDEN",
		},
		{
			name:    "illegal transition",
			err:     &rbac.Error{Code: rbac.CodeIllegalTransition, CurrentStatus: rbac.StatusForwarded},
			status:  http.StatusConflict,
			code:    "ILLEGAL_TRANSITION",
			context: ErrorContext{"current_status": rbac.StatusForwarded},
		},
		{
			name:    "concurrent modification",
			err:     &rbac.Error{Code: rbac.CodeConcurrentModification, CurrentStatus: rbac.StatusApproved},
			status:  http.StatusConflict,
			code:    "CONCURRENT_MODIFICATION",
			context: ErrorContext{"current_status": rbac.StatusApproved},
		},
		{
			name:   "request not found",
			err:    &rbac.Error{Code: rbac.CodePersistenceFailed, Cause: workflow.ErrRequestNotFound},
			status: http.StatusNotFound,
			code:   CodeResourceNotFound,
		},
		{
			name:    "timeout",
			err:     &rbac.Error{Code: rbac.CodePersistenceFailed, Cause: fmt.Errorf("%w: %w", rbac.ErrTimeout, context.DeadlineExceeded)},
			status:  http.StatusServiceUnavailable,
			code:    "PERSISTENCE_FAILED",
			context: ErrorContext{"timeout": true},
		},
		{
			name:   "store failure",
			err:    &rbac.Error{Code: rbac.CodePersistenceFailed, Cause: errors.New("disk full")},
			status: http.StatusServiceUnavailable,
			code:   "PERSISTENCE_FAILED",
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   CodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, b := WorkflowErr(tt.err)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, b.Code)
			assert.Equal(t, tt.context, b.Context)
		})
	}
}

func TestDecisionErr(t *testing.T) {
	guard := access.NewGuard("/login", "/dashboard")

	status, b := DecisionErr(guard.Decide(access.Identity{IsAuthenticated: true, Role: "user"},
		access.RequireFamily(rbac.FamilyAdmin), access.Context{}))

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", b.Code)
	assert.Equal(t, "You do not have permission to access this page.", b.Message)
	assert.Equal(t, access.KindDeny, b.Context["decision"])
	assert.Equal(t, "/dashboard", b.Context["redirect"])
	assert.NotContains(t, b.Context, "current_status")
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown route", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/donations"}, tu.Staff("director", "d-1"))

		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, CodeResourceNotFound, tu.ErrorCode(resp))
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests",
			Body:   map[string]interface{}{"title": 42},
		}, tu.Staff("user", "u-1"))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeValidationError, tu.ErrorCode(resp))
	})
}
