package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/metrics"
	"github.com/reliefdesk/reliefdesk-backend/internal/notifications"
	"github.com/reliefdesk/reliefdesk-backend/internal/testutil"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
	"github.com/stretchr/testify/require"
)

type fakeArchives struct {
	keys []string
	err  error
}

func (f *fakeArchives) PresignGet(ctx context.Context, key string, duration time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://archive.example/" + key + "?X-Amz-Expires=900", nil
}

type fakeSessions struct {
	revoked []string
	err     error
}

func (f *fakeSessions) Revoke(ctx context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.revoked = append(f.revoked, token)
	return nil
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

var errDown = errors.New("connection refused")

type testEnv struct {
	*testutil.TestServer
	store      *workflow.MemoryStore
	dispatcher *notifications.Dispatcher
	metrics    *metrics.Metrics
	archives   *fakeArchives
	sessions   *fakeSessions
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	store := workflow.NewMemoryStore()
	guard := access.NewGuard("/login", "/dashboard")
	m := metrics.New(prometheus.NewRegistry())
	dispatcher := notifications.NewDispatcher(notifications.NewInbox(notifications.DefaultInboxSize), store, nil, nil, nil)
	executor := workflow.NewExecutor(store, guard,
		workflow.WithNotifier(dispatcher),
		workflow.WithObserver(m))

	env := &testEnv{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		archives:   &fakeArchives{},
		sessions:   &fakeSessions{},
	}

	all := append([]Option{
		WithNotifications(dispatcher),
		WithDecisionObserver(m),
		WithArchives(env.archives),
		WithSessions(env.sessions),
	}, opts...)
	s := NewServer(store, executor, guard, all...)

	handler, err := NewRouter(s, RouterOptions{
		Identity: auth.NewDevProvider(""),
		Observer: m,
		Metrics:  m.Handler(),
	})
	require.NoError(t, err)

	env.TestServer = testutil.NewTestServer(handler)
	return env
}
