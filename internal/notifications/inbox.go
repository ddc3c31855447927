package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
)

// Notification is an in-app notice. An empty Recipient is a broadcast.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Recipient string            `json:"recipient,omitempty"`
	Kind      access.NoticeKind `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
}

const DefaultInboxSize = 500

// Inbox keeps the most recent notices in a fixed-size ring.
type Inbox struct {
	mu    sync.RWMutex
	items []Notification
	next  int
	full  bool
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{items: make([]Notification, size)}
}

func (in *Inbox) Push(n Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.items[in.next] = n
	in.next = (in.next + 1) % len(in.items)
	if in.next == 0 {
		in.full = true
	}
}

// Recent returns up to limit notices visible to recipient, newest first.
func (in *Inbox) Recent(recipient string, limit int) []Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()

	count := in.next
	if in.full {
		count = len(in.items)
	}

	out := []Notification{}
	for i := 1; i <= count; i++ {
		n := in.items[(in.next-i+len(in.items))%len(in.items)]
		if n.Recipient != "" && n.Recipient != recipient {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
