package queue

import (
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeEmailDelivery   = "email:delivery"
	TypeTimelineArchive = "timeline:archive"
)

type EmailDeliveryPayload struct {
	To      string
	Subject string
	Body    string
}

type TimelineArchivePayload struct {
	RequestID uuid.UUID
}

func optionsFor(taskType string) []asynq.Option {
	switch taskType {
	case TypeEmailDelivery:
		return []asynq.Option{asynq.Queue("critical"), asynq.MaxRetry(5)}
	case TypeTimelineArchive:
		return []asynq.Option{asynq.Queue("low"), asynq.MaxRetry(10)}
	default:
		return nil
	}
}
