package rbac

import (
	"errors"
	"fmt"
)

// ErrorCode classifies authorization and workflow failures.
type ErrorCode string

const (
	CodeUnknownRole            ErrorCode = "UNKNOWN_ROLE"
	CodeIllegalTransition      ErrorCode = "ILLEGAL_TRANSITION"
	CodeUnauthenticated        ErrorCode = "UNAUTHENTICATED"
	CodeForbidden              ErrorCode = "FORBIDDEN"
	CodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	CodePersistenceFailed      ErrorCode = "PERSISTENCE_FAILED"
	CodeInternal               ErrorCode = "INTERNAL"
)

// ErrTimeout is the cause attached to PERSISTENCE_FAILED when the store
// call ran out of time.
var ErrTimeout = errors.New("timeout")

// Error is returned by the workflow executor. CurrentStatus is the status
// the caller should re-fetch or retry from, when known.
type Error struct {
	Code          ErrorCode
	Message       string
	CurrentStatus Status
	Cause         error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
