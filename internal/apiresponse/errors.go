package apiresponse

import (
	"fmt"
	"net/http"
)

// Kind classifies an API failure and determines its status code.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInternal
)

// StatusCode maps the kind to its HTTP status.
func (kind Kind) StatusCode() int {
	switch kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Violation describes one rejected request field.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the client-facing failure carried through handlers.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	Cause      error
}

func (apiErr *Error) Error() string {
	if apiErr.Cause != nil {
		return fmt.Sprintf("api.%d: %s: %v", apiErr.Kind.StatusCode(), apiErr.Message, apiErr.Cause)
	}
	return fmt.Sprintf("api.%d: %s", apiErr.Kind.StatusCode(), apiErr.Message)
}

func (apiErr *Error) Unwrap() error {
	return apiErr.Cause
}

// StatusCode returns the HTTP status for the error.
func (apiErr *Error) StatusCode() int {
	return apiErr.Kind.StatusCode()
}

// BadRequest reports malformed or missing input.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Invalid reports a set of field violations as a single bad request.
func Invalid(violations []Violation) *Error {
	return &Error{Kind: KindBadRequest, Message: "Validation failed", Violations: violations}
}

// Unauthorized reports missing or rejected credentials.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller acting on a resource it does not own.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Internal wraps an unexpected failure. The cause is logged, never rendered.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}
