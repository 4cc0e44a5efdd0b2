package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the coordinator's rejection taxonomy. Every control
// operation either fully applies or fails with one of these before any
// state is touched.
var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	ErrServerUnreachable = errors.New("server unreachable")
	ErrNotConnected      = errors.New("not connected")
)

// Validationf returns a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns a NotFoundError with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf returns a ConflictError with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the status code the control surface returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus converts an HTTP status code back into the matching sentinel,
// so clients see the same taxonomy the server applied.
func FromStatus(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, message)
	default:
		return fmt.Errorf("server error %d: %s", status, message)
	}
}

// EnsembleError wraps an error with a user-friendly suggestion.
type EnsembleError struct {
	Err        error
	Suggestion string
}

func (e *EnsembleError) Error() string {
	return e.Err.Error()
}

func (e *EnsembleError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &EnsembleError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var ensErr *EnsembleError
	if errors.As(err, &ensErr) && ensErr.Suggestion != "" {
		return ensErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrServerUnreachable) || strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return "Is the coordinator running? Start it with 'ensemble serve', or set client.server_url"
	}

	if errors.Is(err, ErrNotConnected) {
		return "The device lost its connection. It will re-sync automatically once the server is reachable"
	}

	if errors.Is(err, ErrConflict) && strings.Contains(errStr, "device") {
		return "Run 'ensemble devices' to see which devices are currently registered"
	}

	if errors.Is(err, ErrNotFound) && strings.Contains(errStr, "track") {
		return "The track is not in the catalog. Import a library with 'ensemble library import'"
	}

	if errors.Is(err, ErrConflict) && strings.Contains(errStr, "playback") {
		return "Nothing is playing yet. Start a session with 'ensemble play <track-id>'"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
