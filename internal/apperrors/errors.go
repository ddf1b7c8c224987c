// Package apperrors defines the client-side error taxonomy shared by the
// HTTP handlers, the websocket interface and the service layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ClientError is an error caused by the request itself. It carries the HTTP
// status code that should be reported to the client.
type ClientError struct {
	Code    int
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

// New creates a ClientError with the given status code and message.
func New(code int, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// BadRequest creates a 400 ClientError.
func BadRequest(message string) *ClientError {
	return New(http.StatusBadRequest, message)
}

// Forbidden creates a 403 ClientError.
func Forbidden(message string) *ClientError {
	return New(http.StatusForbidden, message)
}

// NotFound creates a 404 ClientError.
func NotFound(message string) *ClientError {
	return New(http.StatusNotFound, message)
}

// Conflict creates a 409 ClientError.
func Conflict(message string) *ClientError {
	return New(http.StatusConflict, message)
}

// FieldMissing reports a required request field that was not provided.
func FieldMissing(key string) *ClientError {
	return BadRequest(fmt.Sprintf("Field %s is missing", key))
}

// FieldType reports a request field of the wrong JSON type.
func FieldType(key string) *ClientError {
	return BadRequest(fmt.Sprintf("Data type error for key %s", key))
}

// StatusOf returns the HTTP status to report for err: the embedded code for
// ClientErrors, 500 for everything else.
func StatusOf(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err. Internal errors are
// masked unless debug is set, so database details never leak to clients.
func MessageOf(err error, debug bool) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if debug {
		return fmt.Sprintf("Internal server error: %v", err)
	}
	return "Internal server error"
}
