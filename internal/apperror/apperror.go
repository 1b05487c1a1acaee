// Package apperror defines the three error kinds the render pipeline can
// fail with: BadRequest, RenderFailed, and InternalError. Each is a typed
// error carrying a stable Code so the HTTP boundary can classify a failure
// without string-matching its message.
package apperror

import (
	"errors"
	"fmt"
)

// Kind identifies which of the three error categories an Error belongs to.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindRenderFailed Kind = "render_failed"
	KindInternal     Kind = "internal_error"
)

// Error is a typed error carrying a Kind, an HTTP-facing Code, a message,
// and an optional wrapped Cause. All three error kinds of spec.md §7 are
// represented by this single type so errors.As has one target to look for.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// BadRequest wraps a parameter-schema failure: a missing, unknown, or
// ill-typed field, or a missing/extra scene file part (spec.md §4.1, §7).
func BadRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Code: 500, Message: fmt.Sprintf(format, args...)}
}

// WrapBadRequest is BadRequest with an underlying cause attached.
func WrapBadRequest(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Code: 500, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RenderFailed wraps an external-renderer failure: a missing camera node,
// a render error, or a missing output file (spec.md §4.2, §4.5, §7).
func RenderFailed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRenderFailed, Code: 500, Message: fmt.Sprintf(format, args...)}
}

// WrapRenderFailed is RenderFailed with an underlying cause attached.
func WrapRenderFailed(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindRenderFailed, Code: 500, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Internal wraps an unexpected failure, e.g. a filesystem error that isn't
// itself part of the render contract (spec.md §7).
func Internal(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Code: 500, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsError extracts an *Error from err, falling back to classifying any
// other error as InternalError so every failure reaching the HTTP boundary
// has a Kind and a Code.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Code: 500, Message: "Internal server error", Cause: err}
}
