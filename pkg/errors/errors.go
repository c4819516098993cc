// Package errors carries the error vocabulary shared by every layer:
// sentinel errors for errors.Is checks, and AppError for errors that
// cross the HTTP boundary with a code and status attached.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for the failure classes callers branch on.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError is a structured error with an HTTP status mapping. Err holds the
// matching sentinel so errors.Is works through any number of wraps.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code, message string, status int, sentinel error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND",
		fmt.Sprintf("%s with id %s not found", resource, id),
		http.StatusNotFound, ErrNotFound)
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError("ALREADY_EXISTS",
		fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		http.StatusConflict, ErrAlreadyExists)
}

// InvalidInput creates a 400 error. Raised locally; an InvalidInput error
// never corresponds to a request that reached a backing store.
func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", message, http.StatusBadRequest, ErrInvalidInput)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newAppError("FORBIDDEN", message, http.StatusForbidden, ErrForbidden)
}

// Conflict creates a 409 error for a state mismatch rejected by a store.
func Conflict(message string) *AppError {
	return newAppError("CONFLICT", message, http.StatusConflict, ErrConflict)
}

// Internal creates a 500 error. The cause is kept for logs but never shown
// to the client.
func Internal(err error) *AppError {
	return newAppError("INTERNAL_ERROR", "an internal error occurred",
		http.StatusInternalServerError, err)
}

// Unavailable creates a 503 error for transport failures where no definitive
// answer was received from the backing store.
func Unavailable(message string, err error) *AppError {
	return newAppError("UNAVAILABLE", message, http.StatusServiceUnavailable,
		fmt.Errorf("%w: %w", ErrServiceUnavail, err))
}

// Wrap adds context to an error while keeping the chain intact.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error to a response status. AppError carries its own;
// bare sentinels map by identity; anything else is a 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
