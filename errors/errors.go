// Package errors models the service's typed error kinds. Every component
// fails with a *Error carrying a stable Kind instead of ad hoc sentinel
// values, so the HTTP layer can map failures to status codes without
// string-sniffing messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, closed enum of failure categories surfaced by the
// pipeline. Values are part of the public error contract: do not rename.
type Kind string

const (
	Unauthenticated    Kind = "UNAUTHENTICATED"
	Forbidden          Kind = "FORBIDDEN"
	NotFound           Kind = "NOT_FOUND"
	ValidationError    Kind = "VALIDATION_ERROR"
	Conflict           Kind = "CONFLICT"
	UnsupportedFormat  Kind = "UNSUPPORTED_FORMAT"
	NoTextExtracted    Kind = "NO_TEXT_EXTRACTED"
	DecodeError        Kind = "DECODE_ERROR"
	TooLarge           Kind = "TOO_LARGE"
	RateLimited        Kind = "RATE_LIMITED"
	BackendUnavailable Kind = "BACKEND_UNAVAILABLE"
	Internal           Kind = "INTERNAL"

	// Login-specific kinds (spec.md §4.9): distinct and stable.
	UserNotFound    Kind = "USER_NOT_FOUND"
	UserInactive    Kind = "USER_INACTIVE"
	InvalidPassword Kind = "INVALID_PASSWORD"
)

// httpStatus maps each Kind to the HTTP status the orchestrator returns.
var httpStatus = map[Kind]int{
	Unauthenticated:    http.StatusUnauthorized,
	Forbidden:          http.StatusForbidden,
	NotFound:           http.StatusNotFound,
	ValidationError:    http.StatusBadRequest,
	Conflict:           http.StatusConflict,
	UnsupportedFormat:  http.StatusBadRequest,
	NoTextExtracted:    http.StatusBadRequest,
	DecodeError:        http.StatusBadRequest,
	TooLarge:           http.StatusBadRequest,
	RateLimited:        http.StatusTooManyRequests,
	BackendUnavailable: http.StatusServiceUnavailable,
	Internal:           http.StatusInternalServerError,
	UserNotFound:       http.StatusUnauthorized,
	UserInactive:       http.StatusUnauthorized,
	InvalidPassword:    http.StatusUnauthorized,
}

// Error is the concrete error type produced by component functions.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a *Error of the given kind, carrying cause for %w-unwrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// HTTPStatus returns the status code for err's Kind, defaulting to 500 for
// errors that were never tagged (programmer error, stdlib error, etc).
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if status, ok := httpStatus[e.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind of err, or Internal if err was not tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
