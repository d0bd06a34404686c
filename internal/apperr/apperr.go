// Package apperr defines the failure kinds shared by the service layer and
// the HTTP boundary. Handlers wrap causes with one of the sentinels; the
// boundary translates the kind to an HTTP status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrUpload       = errors.New("upload failed")
	ErrInternal     = errors.New("internal error")
)

// Validation returns a 400-class error with a caller-facing message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Unauthorized returns a 401-class error with a caller-facing message.
func Unauthorized(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
}

// NotFound returns a 404-class error with a caller-facing message.
func NotFound(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

// Conflict returns a 409-class error with a caller-facing message.
func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// WrapUpload marks a media-store failure.
func WrapUpload(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrUpload, context, err)
}

// WrapInternal marks an unexpected failure, keeping the cause for logs.
func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

// StatusCode maps an error to the HTTP status the boundary should emit.
// Unknown errors are treated as internal.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given sentinel kind.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
