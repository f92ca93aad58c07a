// Package apperr provides typed application errors with error codes.
// This enables proper error handling and HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error
type Kind int

const (
	// KindUnknown is an unclassified error
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found
	KindNotFound
	// KindConflict indicates the operation conflicts with current state
	KindConflict
	// KindValidation indicates invalid input
	KindValidation
	// KindUnauthorized indicates missing or invalid credentials
	KindUnauthorized
	// KindForbidden indicates insufficient permissions
	KindForbidden
	// KindBadRequest indicates a malformed request
	KindBadRequest
	// KindInternal indicates an internal system error
	KindInternal
	// KindUnavailable indicates a service is temporarily unavailable
	KindUnavailable
	// KindUpstream indicates a dependent external system failed
	KindUpstream
	// KindDriftGate indicates a deployment failed its pre-execution consistency check
	KindDriftGate
)

// String returns the string representation of the error kind
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindInternal:
		return "internal"
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	case KindDriftGate:
		return "drift_gate"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the appropriate HTTP status code for the error kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindDriftGate:
		return http.StatusConflict
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus delegates to the error's kind.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// Error is a typed application error
type Error struct {
	// Kind is the error category
	Kind Kind
	// Message is a human-readable error message
	Message string
	// Op is the operation that failed (for debugging)
	Op string
	// Err is the underlying error
	Err error
	// Details contains additional context (optional)
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with kind and message
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithOp adds operation context to the error
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Forbidden creates a forbidden error
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// BadRequest creates a bad request error
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal error
func Internal(message string, err error) *Error {
	return Wrap(err, KindInternal, message)
}

// Unavailable creates an unavailable error
func Unavailable(message string) *Error {
	return New(KindUnavailable, message)
}

// Upstream creates an upstream dependency error
func Upstream(message string, err error) *Error {
	return Wrap(err, KindUpstream, message)
}

// DriftGate creates a drift gate error
func DriftGate(message string) *Error {
	return New(KindDriftGate, message)
}

// GetKind extracts the Kind from an error, returns KindUnknown if not an apperr
func GetKind(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is checks if the error is of a specific kind
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
