package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDecision(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDecision(access.Allow())
	m.ObserveDecision(access.Allow())
	m.ObserveDecision(access.Decision{Kind: access.KindDeny, Reason: rbac.CodeForbidden})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("ALLOW", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("DENY", "FORBIDDEN")))
}

func TestObserveTransitionAndEnqueue(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("applied")
	m.ObserveTransition("conflict")
	m.ObserveEnqueue("email:delivery", nil)
	m.ObserveEnqueue("email:delivery", errors.New("redis down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksEnqueuedTotal.WithLabelValues("email:delivery", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksEnqueuedTotal.WithLabelValues("email:delivery", "error")))
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest(http.MethodGet, "/v1/transitions", http.StatusOK, 20*time.Millisecond)
	m.ObserveTransition("applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `reliefdesk_http_requests_total{method="GET",route="/v1/transitions",status="200"} 1`)
	assert.Contains(t, string(body), `reliefdesk_transitions_total{outcome="applied"} 1`)
}
