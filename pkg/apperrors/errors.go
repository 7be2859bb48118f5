// Package apperrors defines the error taxonomy shared by the consultation
// core. Services return typed errors; HTTP handlers translate them to status
// codes in one place instead of inspecting error strings.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	// KindNotFound indicates the entity does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindForbidden indicates a role or ownership violation.
	KindForbidden Kind = "FORBIDDEN"

	// KindInvalidState indicates a request that is legal in isolation but
	// violates the current state of the entity.
	KindInvalidState Kind = "INVALID_STATE"

	// KindConflict indicates a lost concurrency race.
	KindConflict Kind = "CONFLICT"

	// KindSignatureInvalid indicates a webhook authenticity failure.
	KindSignatureInvalid Kind = "SIGNATURE_INVALID"

	// KindServiceError indicates a downstream dependency failure.
	KindServiceError Kind = "SERVICE_ERROR"
)

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden creates a KindForbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InvalidState creates a KindInvalidState error.
func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// Conflict creates a KindConflict error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// SignatureInvalid creates a KindSignatureInvalid error.
func SignatureInvalid(message string) *Error {
	return &Error{Kind: KindSignatureInvalid, Message: message}
}

// ServiceError creates a KindServiceError error wrapping the cause.
func ServiceError(message string, err error) *Error {
	return &Error{Kind: KindServiceError, Message: message, Err: err}
}

// KindOf returns the Kind of err when it is (or wraps) an *Error, and ""
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
