package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
	"github.com/reliefdesk/reliefdesk-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueueCounter struct {
	mu    sync.Mutex
	types []string
}

func (c *enqueueCounter) ObserveEnqueue(taskType string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.types = append(c.types, taskType)
	}
}

type recordingSender struct {
	sent chan string
}

func (s *recordingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.sent <- to + "|" + subject
	return nil
}

func TestTaskQueue_Enqueue(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	tq := testutil.NewTestQueue(t)
	counter := &enqueueCounter{}
	tq.Queue.SetObserver(counter)

	emailInfo, err := tq.Queue.Enqueue(queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
		To: "requester@example.org", Subject: "Request approved", Body: "<p>ok</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "critical", emailInfo.Queue)
	assert.Equal(t, 5, emailInfo.MaxRetry)

	requestID := uuid.New()
	archiveInfo, err := tq.Queue.Enqueue(queue.TypeTimelineArchive, queue.TimelineArchivePayload{RequestID: requestID})
	require.NoError(t, err)
	assert.Equal(t, "low", archiveInfo.Queue)
	assert.Equal(t, 10, archiveInfo.MaxRetry)

	critical := tq.Pending(t, "critical")
	require.Len(t, critical, 1)
	assert.Equal(t, queue.TypeEmailDelivery, critical[0].Type)

	low := tq.Pending(t, "low")
	require.Len(t, low, 1)
	var payload queue.TimelineArchivePayload
	require.NoError(t, json.Unmarshal(low[0].Payload, &payload))
	assert.Equal(t, requestID, payload.RequestID)

	assert.Equal(t, []string{queue.TypeEmailDelivery, queue.TypeTimelineArchive}, counter.types)
	assert.NoError(t, tq.Queue.Ping())
}

func TestWorker_DeliversQueuedEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}
	tq := testutil.NewTestQueue(t)
	sender := &recordingSender{sent: make(chan string, 1)}

	worker := queue.NewWorker(&tq.Config, sender, nil)
	require.NoError(t, worker.Start())
	defer worker.Close()

	_, err := tq.Queue.Enqueue(queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
		To: "requester@example.org", Subject: "Request rejected", Body: "<p>sorry</p>",
	})
	require.NoError(t, err)

	select {
	case got := <-sender.sent:
		assert.Equal(t, "requester@example.org|Request rejected", got)
	case <-time.After(15 * time.Second):
		t.Fatal("email task was not processed")
	}
}
