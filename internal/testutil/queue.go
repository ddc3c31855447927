package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestQueue is a TaskQueue backed by a throwaway Redis, with an Inspector
// for asserting on what was enqueued.
type TestQueue struct {
	Queue     *queue.TaskQueue
	Config    config.RedisConfig
	Inspector *asynq.Inspector
	container *redis.RedisContainer
}

// NewTestQueue starts Redis and closes everything when t finishes.
func NewTestQueue(t *testing.T) *TestQueue {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
				wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second),
			),
		),
	)
	require.NoError(t, err, "Failed to start Redis container")

	tq := &TestQueue{container: redisContainer}
	t.Cleanup(tq.Close)

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get redis endpoint")

	tq.Config = config.RedisConfig{Addr: endpoint}
	tq.Queue, err = queue.NewQueue(&tq.Config)
	require.NoError(t, err, "Failed to connect task queue")
	tq.Inspector = asynq.NewInspector(asynq.RedisClientOpt{Addr: endpoint})

	return tq
}

// Pending returns the tasks waiting in the named asynq queue.
func (tq *TestQueue) Pending(t *testing.T, name string) []*asynq.TaskInfo {
	t.Helper()
	tasks, err := tq.Inspector.ListPendingTasks(name)
	require.NoError(t, err)
	return tasks
}

func (tq *TestQueue) Close() {
	if tq.Queue != nil {
		tq.Queue.Close()
	}
	if tq.Inspector != nil {
		tq.Inspector.Close()
	}
	if tq.container != nil {
		_ = tq.container.Terminate(context.Background())
	}
}
