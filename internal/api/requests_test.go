package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	tu "github.com/reliefdesk/reliefdesk-backend/internal/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/timeline"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transition(t *testing.T, env *testEnv, id uuid.UUID, as access.Identity, body map[string]interface{}) *tu.Response {
	t.Helper()
	return env.AsIdentity(t, tu.Request{
		Method: http.MethodPost,
		Path:   "/v1/requests/" + id.String() + "/transitions",
		Body:   body,
	}, as)
}

func TestCreateRequest(t *testing.T) {
	env := newTestEnv(t)
	requester := tu.Staff("user", "u-1")

	t.Run("creates a submitted request", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests",
			Body:   map[string]interface{}{"title": "  Water tank ", "description": "Village well is dry"},
		}, requester)

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, "Water tank", resp.Body["title"])
		assert.Equal(t, "submitted", resp.Body["status"])
		assert.Equal(t, "u-1", resp.Body["requester_id"])

		id := uuid.MustParse(resp.Body["id"].(string))
		entries, err := env.store.ListAuditEntries(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Request submitted", entries[0].Description)
	})

	t.Run("title is required", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests",
			Body:   map[string]interface{}{"description": "no title"},
		}, requester)

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, CodeValidationError, tu.ErrorCode(resp))
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests",
			Body:   map[string]interface{}{"title": "   "},
		}, requester)

		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unknown role is denied", func(t *testing.T) {
		resp := env.AsIdentity(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests",
			Body:   map[string]interface{}{"title": "Blankets"},
		}, tu.Staff("volunteer", "v-1"))

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, "UNKNOWN_ROLE", tu.ErrorCode(resp))
		assert.Equal(t, "/dashboard", tu.ErrorContext(resp)["redirect"])
	})
}

func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	tu.NewRequest(t, env.store).WithTitle("Food parcels").WithRequester("u-1").Create()
	tu.NewRequest(t, env.store).WithTitle("School fees").WithRequester("u-1").Create()
	tu.NewRequest(t, env.store).WithTitle("Roof repair").WithRequester("u-2").Create()

	list := func(as access.Identity, query map[string]string) *tu.Response {
		return env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/requests", QueryParams: query}, as)
	}

	t.Run("requesters see their own", func(t *testing.T) {
		resp := list(tu.Staff("user", "u-1"), nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["data"], 2)
	})

	t.Run("staff see everything", func(t *testing.T) {
		resp := list(tu.Staff("finance_manager", "fm-1"), nil)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["data"], 3)
	})

	t.Run("staff filter by requester", func(t *testing.T) {
		resp := list(tu.Staff("director", "d-1"), map[string]string{"requester": "u-2"})

		require.Equal(t, http.StatusOK, resp.Code)
		data := resp.Body["data"].([]interface{})
		require.Len(t, data, 1)
		assert.Equal(t, "Roof repair", data[0].(map[string]interface{})["title"])
	})

	t.Run("requesters cannot list others", func(t *testing.T) {
		resp := list(tu.Staff("user", "u-1"), map[string]string{"requester": "u-2"})

		require.Equal(t, http.StatusForbidden, resp.Code)
		assert.Equal(t, "FORBIDDEN", tu.ErrorCode(resp))
	})

	t.Run("pagination", func(t *testing.T) {
		resp := list(tu.Staff("director", "d-1"), map[string]string{"limit": "2", "offset": "0"})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, resp.Body["data"], 2)
		meta := resp.Body["meta"].(map[string]interface{})
		assert.Equal(t, float64(3), meta["total"])
		assert.Equal(t, true, meta["has_more"])
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp := list(tu.Staff("director", "d-1"), map[string]string{"limit": "many"})

		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestGetRequest(t *testing.T) {
	env := newTestEnv(t)
	req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()
	path := "/v1/requests/" + req.ID.String()

	tests := []struct {
		name string
		as   access.Identity
		path string
		code int
	}{
		{"requester", tu.Staff("user", "u-1"), path, http.StatusOK},
		{"staff", tu.Staff("field_officer", "fo-1"), path, http.StatusOK},
		{"other requester", tu.Staff("user", "u-2"), path, http.StatusForbidden},
		{"missing", tu.Staff("director", "d-1"), "/v1/requests/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", tu.Staff("director", "d-1"), "/v1/requests/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: tt.path}, tt.as)

			require.Equal(t, tt.code, resp.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, req.ID.String(), resp.Body["id"])
			}
		})
	}
}

func TestTransitionRequest(t *testing.T) {
	t.Run("applies a permitted transition", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithTitle("Water tank").WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("Regional Project Officer", "rpo-1"),
			map[string]interface{}{"target_status": "assigned", "note": "Sipho to visit"})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "submitted", resp.Body["from_status"])
		assert.Equal(t, "assigned", resp.Body["to_status"])
		assert.Equal(t, "regional_project_officer", resp.Body["acting_role"])
		assert.Equal(t, "Request status updated from Submitted to Assigned", resp.Body["description"])

		stored, err := env.store.GetRequest(context.Background(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, rbac.StatusAssigned, stored.Status)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.TransitionsTotal.WithLabelValues(workflow.OutcomeApplied)))

		notices := env.dispatcher.Recent("u-1", 10)
		require.Len(t, notices, 1)
		assert.Equal(t, "Request updated", notices[0].Title)
	})

	t.Run("illegal transition reports the current status", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("field_officer", "fo-1"),
			map[string]interface{}{"current_status": "submitted", "target_status": "approved"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "ILLEGAL_TRANSITION", tu.ErrorCode(resp))
		assert.Equal(t, "submitted", tu.ErrorContext(resp)["current_status"])

		notices := env.dispatcher.Recent("fo-1", 10)
		require.Len(t, notices, 1)
		assert.Equal(t, access.NoticeError, notices[0].Kind)

		stored, err := env.store.GetRequest(context.Background(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, rbac.StatusSubmitted, stored.Status)
	})

	t.Run("illegal transition from a stale status reports the stored status", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithStatus(rbac.StatusManagerReview).WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("director", "d-1"),
			map[string]interface{}{"current_status": "submitted", "target_status": "approved"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "ILLEGAL_TRANSITION", tu.ErrorCode(resp))
		assert.Equal(t, "manager_review", tu.ErrorContext(resp)["current_status"])

		resp = transition(t, env, req.ID, tu.Staff("director", "d-1"),
			map[string]interface{}{"current_status": "manager_review", "target_status": "approved"})
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("stale current status is a conflict", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("director", "d-1"),
			map[string]interface{}{"current_status": "assigned", "target_status": "under_review"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "CONCURRENT_MODIFICATION", tu.ErrorCode(resp))
		assert.Equal(t, "submitted", tu.ErrorContext(resp)["current_status"])
	})

	t.Run("no-op transition", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("admin", "a-1"),
			map[string]interface{}{"target_status": "submitted"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "ILLEGAL_TRANSITION", tu.ErrorCode(resp))
	})

	t.Run("missing request", func(t *testing.T) {
		env := newTestEnv(t)

		resp := transition(t, env, uuid.New(), tu.Staff("director", "d-1"),
			map[string]interface{}{"current_status": "submitted", "target_status": "assigned"})

		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, CodeResourceNotFound, tu.ErrorCode(resp))
	})

	t.Run("target status is required", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

		resp := transition(t, env, req.ID, tu.Staff("director", "d-1"), map[string]interface{}{"note": "?"})

		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("anonymous callers are redirected", func(t *testing.T) {
		env := newTestEnv(t)
		req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

		resp := env.MakeRequest(t, tu.Request{
			Method: http.MethodPost,
			Path:   "/v1/requests/" + req.ID.String() + "/transitions",
			Body:   map[string]interface{}{"target_status": "assigned"},
		})

		require.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "/login", tu.ErrorContext(resp)["redirect"])
	})
}

func TestGetRequestTimeline(t *testing.T) {
	env := newTestEnv(t)

	created := env.AsIdentity(t, tu.Request{
		Method: http.MethodPost,
		Path:   "/v1/requests",
		Body:   map[string]interface{}{"title": "Wheelchair"},
	}, tu.Staff("user", "u-1"))
	require.Equal(t, http.StatusCreated, created.Code)
	id := uuid.MustParse(created.Body["id"].(string))

	resp := transition(t, env, id, tu.Staff("head_of_programs", "hop-1"), map[string]interface{}{"target_status": "assigned"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/requests/" + id.String() + "/timeline"},
		tu.Staff("user", "u-1"))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, resp.Body["transitions"], 1)
	audit := resp.Body["audit"].([]interface{})
	require.Len(t, audit, 2)
	assert.Equal(t, "Request submitted", audit[0].(map[string]interface{})["description"])
	assert.Equal(t, "Request status updated from Submitted to Assigned", audit[1].(map[string]interface{})["description"])
}

func TestGetTimelineArchive(t *testing.T) {
	env := newTestEnv(t)
	open := tu.NewRequest(t, env.store).WithRequester("u-1").Create()
	closed := tu.NewRequest(t, env.store).WithRequester("u-1").WithStatus(rbac.StatusCompleted).Create()

	archive := func(id uuid.UUID) *tu.Response {
		return env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/requests/" + id.String() + "/timeline/archive"},
			tu.Staff("user", "u-1"))
	}

	t.Run("open requests have no archive", func(t *testing.T) {
		resp := archive(open.ID)

		require.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, CodeResourceNotFound, tu.ErrorCode(resp))
	})

	t.Run("closed requests link to the archive", func(t *testing.T) {
		resp := archive(closed.ID)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, timeline.Key(closed.ID), resp.Body["key"])
		assert.Contains(t, resp.Body["url"], timeline.Key(closed.ID))
		assert.NotEmpty(t, resp.Body["expires_at"])
	})

	t.Run("presign failure", func(t *testing.T) {
		env.archives.err = errors.New("no credentials")
		defer func() { env.archives.err = nil }()

		resp := archive(closed.ID)

		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, CodeInternalError, tu.ErrorCode(resp))
	})
}

func TestListNotifications(t *testing.T) {
	env := newTestEnv(t)
	req := tu.NewRequest(t, env.store).WithRequester("u-1").Create()

	resp := transition(t, env, req.ID, tu.Staff("ceo", "c-1"), map[string]interface{}{"target_status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/notifications"}, tu.Staff("user", "u-1"))

	require.Equal(t, http.StatusOK, resp.Code)
	data := resp.Body["data"].([]interface{})
	require.Len(t, data, 1)
	n := data[0].(map[string]interface{})
	assert.Equal(t, "INFO", n["kind"])
	assert.Equal(t, "Request status updated from Submitted to Cancelled", n["message"])

	resp = env.AsIdentity(t, tu.Request{Method: http.MethodGet, Path: "/v1/notifications"}, tu.Staff("user", "u-2"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Body["data"])
}

func TestLogout(t *testing.T) {
	t.Run("revokes the bearer token", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.AsIdentity(t, tu.Request{
			Method:  http.MethodPost,
			Path:    "/v1/session/logout",
			Headers: map[string]string{"Authorization": "Bearer abc.def.ghi"},
		}, tu.Staff("director", "d-1"))

		require.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, []string{"abc.def.ghi"}, env.sessions.revoked)
	})

	t.Run("revocation failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.sessions.err = errors.New("token expired")

		resp := env.AsIdentity(t, tu.Request{
			Method:  http.MethodPost,
			Path:    "/v1/session/logout",
			Headers: map[string]string{"Authorization": "Bearer abc.def.ghi"},
		}, tu.Staff("director", "d-1"))

		require.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "UNAUTHENTICATED", tu.ErrorCode(resp))
	})
}
