// Package apperror defines the application error taxonomy. Handlers and
// middleware abort with one of these errors instead of writing responses
// themselves; the central responder in handler.go turns them into the
// uniform client-facing envelope. An error is "operational" when its message
// is safe to show to clients (a missing resource, a bad token). Anything
// else is treated as a programming or infrastructure fault and its details
// are hidden in production.
package apperror

import (
	"fmt"
	"net/http"
)

// Error carries an HTTP status code, a client-facing message and an optional
// wrapped cause. Operational is true for expected failures.
type Error struct {
	Code        int
	Message     string
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the envelope status for the error code: "fail" for 4xx
// and "error" for everything else.
func (e *Error) Status() string {
	if e.Code >= 400 && e.Code < 500 {
		return "fail"
	}
	return "error"
}

// New builds an operational error with the given status code and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message, Operational: true}
}

// BadRequest flags a malformed or invalid request (400).
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized covers the 401 family: missing, tampered, expired or stale
// credentials and tokens whose user no longer exists.
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden is returned when the authenticated user's role is not allowed
// to perform the operation (403).
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound flags a missing resource (404).
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Conflict flags a duplicate unique field (409).
func Conflict(message string) *Error { return New(http.StatusConflict, message) }

// Validation flags a schema constraint violation (400).
func Validation(message string) *Error { return New(http.StatusBadRequest, message) }

// Internal wraps an unexpected failure. It is not operational, so the
// responder replaces its message with a generic one in production.
func Internal(err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: "something went very wrong", Err: err}
}

// EmailDelivery is returned when the outgoing mail collaborator fails. The
// message is safe to show, but the status stays 500.
func EmailDelivery(err error) *Error {
	return &Error{
		Code:        http.StatusInternalServerError,
		Message:     "there was an error sending the email, try again later",
		Operational: true,
		Err:         err,
	}
}
