package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeResourceNotFound = "RESOURCE_NOT_FOUND"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// additional error context
type ErrorContext map[string]interface{}

type ErrorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
	Context ErrorContext  `json:"context,omitempty"`
}

// ErrorResponse is the envelope of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// builder pattern
type ErrorBuilder struct {
	Code    string
	Message string
	Details []ErrorDetail
	Context ErrorContext
}

func NewError(code, message string) *ErrorBuilder {
	return &ErrorBuilder{Code: code, Message: message}
}

func (e *ErrorBuilder) WithDetails(details []ErrorDetail) *ErrorBuilder {
	e.Details = details
	return e
}

func (e *ErrorBuilder) WithContext(context ErrorContext) *ErrorBuilder {
	e.Context = context
	return e
}

func (e *ErrorBuilder) Create() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Context: e.Context,
	}}
}

// builder pattern extensions

func Unauthorized(msg string) *ErrorBuilder {
	return NewError(string(rbac.CodeUnauthenticated), msg)
}

func PermissionDenied(msg string) *ErrorBuilder {
	return NewError(string(rbac.CodeForbidden), msg)
}

func NotFound(resource string) *ErrorBuilder {
	return NewError(CodeResourceNotFound, resource+" not found")
}

func ValidationErr(msg string, details []ErrorDetail) *ErrorBuilder {
	return NewError(CodeValidationError, msg).WithDetails(details)
}

func InternalError(msg string) *ErrorBuilder {
	return NewError(CodeInternalError, msg)
}

// DecisionErr renders a non-ALLOW guard decision. Its context carries the
// redirect target, the notice and, for transitions, the current status.
func DecisionErr(d access.Decision) (int, *ErrorBuilder) {
	msg := "Access denied"
	if d.Notice != nil {
		msg = d.Notice.Message
	}
	ctx := ErrorContext{"decision": d.Kind}
	if d.Redirect != "" {
		ctx["redirect"] = d.Redirect
	}
	if d.Notice != nil {
		ctx["notice"] = d.Notice
	}
	if d.CurrentStatus != "" {
		ctx["current_status"] = d.CurrentStatus
	}
	if d.TargetStatus != "" {
		ctx["target_status"] = d.TargetStatus
	}
	return statusForCode(d.Reason), NewError(string(d.Reason), msg).WithContext(ctx)
}

// WorkflowErr renders an executor failure.
func WorkflowErr(err error) (int, *ErrorBuilder) {
	var rerr *rbac.Error
	if !errors.As(err, &rerr) {
		return http.StatusInternalServerError, InternalError("An unexpected error occurred.")
	}

	b := NewError(string(rerr.Code), rerr.Message)
	if rerr.CurrentStatus != "" {
		b.WithContext(ErrorContext{"current_status": rerr.CurrentStatus})
	}

	switch {
	case rerr.Code == rbac.CodePersistenceFailed && errors.Is(err, workflow.ErrRequestNotFound):
		return http.StatusNotFound, NotFound("Request")
	case rerr.Code == rbac.CodePersistenceFailed && errors.Is(err, rbac.ErrTimeout):
		return http.StatusServiceUnavailable, NewError(string(rerr.Code), "The request store did not respond in time.").
			WithContext(ErrorContext{"timeout": true})
	case rerr.Code == rbac.CodePersistenceFailed:
		return http.StatusServiceUnavailable, NewError(string(rerr.Code), "The change could not be saved. Please try again.")
	}
	return statusForCode(rerr.Code), b
}

func statusForCode(code rbac.ErrorCode) int {
	switch code {
	case rbac.CodeUnauthenticated:
		return http.StatusUnauthorized
	case rbac.CodeForbidden, rbac.CodeUnknownRole:
		return http.StatusForbidden
	case rbac.CodeIllegalTransition, rbac.CodeConcurrentModification:
		return http.StatusConflict
	case rbac.CodePersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, b *ErrorBuilder) {
	writeJSON(w, status, b.Create())
}
