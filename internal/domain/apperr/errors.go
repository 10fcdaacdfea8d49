// Package apperr defines the error taxonomy shared by the workflow core.
// Every error that crosses a component boundary carries a Kind so callers
// can branch on it with errors.Is or KindOf regardless of wrapping.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindInvalidState      Kind = "INVALID_STATE"
	KindDuplicateRequest  Kind = "DUPLICATE_REQUEST"
	KindUnsupportedAction Kind = "UNSUPPORTED_ACTION"
	KindExecutionFailed   Kind = "EXECUTION_FAILED"
)

// Sentinels for errors.Is matching by kind
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrDuplicateRequest  = &Error{Kind: KindDuplicateRequest}
	ErrUnsupportedAction = &Error{Kind: KindUnsupportedAction}
	ErrExecutionFailed   = &Error{Kind: KindExecutionFailed}
)

// Error is a classified failure
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Details carries structured context, e.g. the missing-requirements list
	Details []string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Details, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in the chain,
// or an empty Kind when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Validation reports malformed or missing input
func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// MissingFields reports a validation failure listing every missing requirement
func MissingFields(op string, missing []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: "incomplete submission",
		Details: append([]string(nil), missing...),
	}
}

// NotFound reports an unknown id
func NotFound(op, what, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// Forbidden reports a role or scope mismatch
func Forbidden(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation attempted in the wrong lifecycle state
func InvalidState(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Duplicate reports a PENDING-uniqueness violation
func Duplicate(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicateRequest, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unsupported reports an (entity, action) pair with no handler
func Unsupported(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupportedAction, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ExecutionFailed wraps a mutation failure. An error that is already an
// execution failure is returned unchanged.
func ExecutionFailed(op string, cause error) *Error {
	var e *Error
	if errors.As(cause, &e) && e.Kind == KindExecutionFailed {
		return e
	}
	return &Error{Kind: KindExecutionFailed, Op: op, Message: "execution failed", Err: cause}
}
