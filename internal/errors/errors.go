package errors

import (
	"net/http"
)

// APIError carries an HTTP status, a user-facing message and the wrapped
// internal error. The websocket layer reuses the same taxonomy and maps it
// onto error events instead of HTTP responses.
type APIError struct {
	Status   int    `json:"-"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *APIError) Unwrap() error {
	return e.Internal
}

func newError(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return newError(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return newError(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return newError(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return newError(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return newError(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return newError(http.StatusUnprocessableEntity, message, err)
}

// Unavailable marks a transient store failure. Callers must not treat it as
// a denial; the operation may succeed when retried.
func Unavailable(message string, err error) *APIError {
	return newError(http.StatusServiceUnavailable, message, err)
}

func Internal(err error) *APIError {
	return newError(http.StatusInternalServerError, "Internal server error", err)
}
