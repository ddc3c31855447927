package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

// resolves user ids to email addresses.
type EmailLookupFunc func(ctx context.Context, ids []string) (map[string]string, error)

// subset of TaskQueue.
type queueService interface {
	Enqueue(taskType string, data interface{}) (*asynq.TaskInfo, error)
}

type requestGetter interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*workflow.Request, error)
}

// Dispatcher delivers in-app notices and status-change emails. It never
// returns errors to its callers; failures are logged.
type Dispatcher struct {
	inbox       *Inbox
	queue       queueService
	requests    requestGetter
	templates   *template.Template
	emailLookup EmailLookupFunc
	now         func() time.Time
}

// NewDispatcher builds a dispatcher. q, tmpl and lookup may be nil, which
// disables email and archive tasks.
func NewDispatcher(inbox *Inbox, requests requestGetter, q queueService, tmpl *template.Template, lookup EmailLookupFunc) *Dispatcher {
	return &Dispatcher{
		inbox:       inbox,
		queue:       q,
		requests:    requests,
		templates:   tmpl,
		emailLookup: lookup,
		now:         time.Now,
	}
}

var _ workflow.Notifier = (*Dispatcher)(nil)

// Notify records an in-app notice for recipient.
func (d *Dispatcher) Notify(ctx context.Context, recipient string, n access.Notice) {
	d.inbox.Push(Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: d.now().UTC(),
	})
	logging.Debug("Notice recorded", "recipient", recipient, "kind", n.Kind, "title", n.Title)
}

func (d *Dispatcher) Recent(recipient string, limit int) []Notification {
	return d.inbox.Recent(recipient, limit)
}

// TransitionApplied tells the requester about the change, emails them when
// someone else made it, and schedules an archive for closed requests.
func (d *Dispatcher) TransitionApplied(ctx context.Context, rec workflow.TransitionRecord) {
	req, err := d.requests.GetRequest(ctx, rec.RequestID)
	if err != nil {
		logging.Error("failed to load request for notification", "request_id", rec.RequestID, "error", err)
		return
	}

	// An empty recipient is a broadcast, so requests without a requester
	// get no notice or email.
	if req.RequesterID == "" {
		logging.Warn("request has no requester, skipping notification", "request_id", req.ID)
	} else {
		d.Notify(ctx, req.RequesterID, access.Notice{
			Kind:    access.NoticeInfo,
			Title:   "Request updated",
			Message: rec.Description,
		})
	}

	name := TemplateStatusChanged
	if rec.ToStatus.IsTerminal() {
		name = TemplateRequestClosed
	}
	if req.RequesterID != "" && req.RequesterID != rec.ActorID {
		d.sendEmail(ctx, req.RequesterID, name, map[string]interface{}{
			"Title":       req.Title,
			"RequestID":   req.ID.String(),
			"From":        rec.FromStatus.Label(),
			"To":          rec.ToStatus.Label(),
			"Description": rec.Description,
			"Note":        rec.Note,
		})
	}

	if rec.ToStatus.IsTerminal() && d.queue != nil {
		if _, err := d.queue.Enqueue(queue.TypeTimelineArchive, queue.TimelineArchivePayload{RequestID: rec.RequestID}); err != nil {
			logging.Error("failed to enqueue timeline archive", "request_id", rec.RequestID, "error", err)
		}
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, recipient, name string, data map[string]interface{}) {
	if d.queue == nil || d.templates == nil {
		return
	}
	if d.emailLookup == nil {
		logging.Debug("email lookup not configured, skipping email", "template", name)
		return
	}
	emails, err := d.emailLookup(ctx, []string{recipient})
	if err != nil {
		logging.Error("failed to look up emails for notification", "template", name, "error", err)
		return
	}
	to, ok := emails[recipient]
	if !ok || to == "" {
		logging.Debug("no email address for recipient", "recipient", recipient)
		return
	}

	subject, body, err := d.renderTemplate(name, data)
	if err != nil {
		logging.Error("failed to render notification template", "template", name, "error", err)
		return
	}

	if _, err := d.queue.Enqueue(queue.TypeEmailDelivery, queue.EmailDeliveryPayload{
		To:      to,
		Subject: subject,
		Body:    body,
	}); err != nil {
		logging.Error("failed to enqueue notification email", "to", to, "template", name, "error", err)
	}
}

// {{define "name:subject"}} and {{define "name:body"}}
func (d *Dispatcher) renderTemplate(name string, data map[string]interface{}) (subject, body string, err error) {
	var subjectBuf bytes.Buffer
	if err = d.templates.ExecuteTemplate(&subjectBuf, name+":subject", data); err != nil {
		return "", "", fmt.Errorf("render subject for %q: %w", name, err)
	}

	var bodyBuf bytes.Buffer
	if err = d.templates.ExecuteTemplate(&bodyBuf, name+":body", data); err != nil {
		return "", "", fmt.Errorf("render body for %q: %w", name, err)
	}

	return subjectBuf.String(), bodyBuf.String(), nil
}
