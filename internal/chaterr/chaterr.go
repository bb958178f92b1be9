package chaterr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation")
	ErrPermission        = errors.New("permission")
	ErrEditWindowExpired = errors.New("edit_window_expired")
	ErrNotFound          = errors.New("not_found")
	// ErrConflict only ever comes out of an insert racing a unique
	// constraint. Reaction toggles swallow it.
	ErrConflict = errors.New("conflict")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Permission(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func EditWindowExpired(messageID int64) error {
	return fmt.Errorf("%w: message %d can no longer be edited", ErrEditWindowExpired, messageID)
}

func Conflict(err error) error {
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

// Status maps an error to the HTTP status a handler should answer with.
// The second return value is false for unexpected errors that need to be
// logged.
func Status(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, true
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ErrEditWindowExpired):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, true
	}
	return http.StatusInternalServerError, false
}
