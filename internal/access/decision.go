package access

import "github.com/reliefdesk/reliefdesk-backend/internal/rbac"

// Kind is the outcome of a decision.
type Kind string

const (
	KindAllow    Kind = "ALLOW"
	KindDeny     Kind = "DENY"
	KindRedirect Kind = "REDIRECT"
)

// NoticeKind matches the notification collaborator's kinds.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "INFO"
	NoticeError NoticeKind = "ERROR"
)

// Notice is a user-visible message the caller should deliver.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Decision is produced per request and must not be cached. Redirect is the
// navigation target for REDIRECT and for DENY outcomes that send the user
// elsewhere. CurrentStatus and TargetStatus are set on transition denials.
type Decision struct {
	Kind          Kind           `json:"kind"`
	Reason        rbac.ErrorCode `json:"reason,omitempty"`
	Redirect      string         `json:"redirect,omitempty"`
	Notice        *Notice        `json:"notice,omitempty"`
	CurrentStatus rbac.Status    `json:"current_status,omitempty"`
	TargetStatus  rbac.Status    `json:"target_status,omitempty"`
}

// Allow returns an ALLOW decision.
func Allow() Decision {
	return Decision{Kind: KindAllow}
}

func (d Decision) Allowed() bool {
	return d.Kind == KindAllow
}

// Err converts a non-ALLOW decision into an *rbac.Error; ALLOW returns nil.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	e := &rbac.Error{Code: d.Reason, CurrentStatus: d.CurrentStatus}
	if d.Notice != nil {
		e.Message = d.Notice.Message
	}
	return e
}

func redirect(target string, reason rbac.ErrorCode, n Notice) Decision {
	return Decision{Kind: KindRedirect, Reason: reason, Redirect: target, Notice: &n}
}

func deny(reason rbac.ErrorCode, target string, n Notice) Decision {
	return Decision{Kind: KindDeny, Reason: reason, Redirect: target, Notice: &n}
}

func illegal(from, to rbac.Status, msg string) Decision {
	return Decision{
		Kind:          KindDeny,
		Reason:        rbac.CodeIllegalTransition,
		CurrentStatus: from,
		TargetStatus:  to,
		Notice: &Notice{
			Kind:    NoticeError,
			Title:   "Status change not allowed",
			Message: msg,
		},
	}
}
