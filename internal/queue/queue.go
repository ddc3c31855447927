package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
)

// EnqueueObserver counts enqueue attempts by task type.
type EnqueueObserver interface {
	ObserveEnqueue(taskType string, err error)
}

type TaskQueue struct {
	client   *asynq.Client
	observer EnqueueObserver
}

func NewQueue(cfg *config.RedisConfig) (*TaskQueue, error) {
	client := asynq.NewClient(redisOpt(cfg))

	// Activate and test the connection
	if err := client.Ping(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis queue: %w", err)
	}

	logging.Info("Connected to Redis task queue", "addr", cfg.Addr)

	return &TaskQueue{client: client}, nil
}

func (q *TaskQueue) SetObserver(o EnqueueObserver) {
	q.observer = o
}

func (q *TaskQueue) Enqueue(taskType string, data interface{}) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	info, err := q.client.Enqueue(asynq.NewTask(taskType, payload, optionsFor(taskType)...))
	if q.observer != nil {
		q.observer.ObserveEnqueue(taskType, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return info, nil
}

func (q *TaskQueue) Ping() error {
	return q.client.Ping()
}

func (q *TaskQueue) Close() error {
	return q.client.Close()
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
