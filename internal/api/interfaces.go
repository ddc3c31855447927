package api

import (
	"context"
	"time"

	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/notifications"
)

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DecisionObserver counts guard decisions.
type DecisionObserver interface {
	ObserveDecision(d access.Decision)
}

// NotificationService delivers and lists in-app notices.
type NotificationService interface {
	Notify(ctx context.Context, recipient string, n access.Notice)
	Recent(recipient string, limit int) []notifications.Notification
}

// ArchiveService hands out download links for archived timelines.
type ArchiveService interface {
	PresignGet(ctx context.Context, key string, duration time.Duration) (string, error)
}

// SessionRevoker ends bearer sessions.
type SessionRevoker interface {
	Revoke(ctx context.Context, token string) error
}
