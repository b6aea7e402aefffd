package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure stages a request can hit, plus input
// validation. Services wrap these; the HTTP layer maps them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRemote       = errors.New("remote api error")
	ErrStore        = errors.New("store error")
	ErrValidation   = errors.New("validation error")
)

type AppError struct {
	Err     error  // sentinel identifying the failure stage
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized is returned when no session or access token can be resolved
// for the caller. Webhook events hit this when the owning user's sessions
// have been deleted from the store.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Remote wraps a failed call to the marketing API. Rate limits and expired
// tokens land here too; the store keeps no expiry state, so they are
// indistinguishable from any other remote failure.
func Remote(stage string, err error) *AppError {
	return &AppError{
		Err:     ErrRemote,
		Message: fmt.Sprintf("remote %s failed: %v", stage, err),
	}
}

// RemoteStatus reports a non-2xx status from a specific remote endpoint.
func RemoteStatus(method, path string, status int) *AppError {
	return &AppError{
		Err:     ErrRemote,
		Message: fmt.Sprintf("remote %s %s returned status %d", method, path, status),
	}
}

// Store wraps a persistence failure, naming the statement that failed.
func Store(op string, err error) *AppError {
	return &AppError{
		Err:     ErrStore,
		Message: fmt.Sprintf("store %s failed: %v", op, err),
	}
}
