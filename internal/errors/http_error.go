package errors

import (
	"net/http"

	"github.com/goccy/go-json"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int         `json:"-"`
	Kind    string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, kind, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

func (e *HTTPError) WithDetails(details interface{}) *HTTPError {
	e.Details = details
	return e
}

// Helpers for common errors
func ErrBadRequest(msg string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, "bad_request", msg)
}

func ErrUnauthorized(msg string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized", msg)
}

func ErrForbidden(msg string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, "forbidden", msg)
}

func ErrNotFound(msg string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, "not_found", msg)
}

func ErrConflict(msg string) *HTTPError {
	return NewHTTPError(http.StatusConflict, "conflict", msg)
}

func ErrUnprocessable(msg string) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, "unprocessable", msg)
}

func ErrUnavailable(msg string) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, "unavailable", msg)
}

func ErrInternal() *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, "internal", "internal server error")
}

// WriteError writes e as a JSON body with its status code.
func WriteError(w http.ResponseWriter, e *HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(e)
}
