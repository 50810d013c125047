// Package apierr carries the error kinds that handlers turn into HTTP
// responses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Status  int
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation_error", Message: message, Fields: fields}
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "forbidden", message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, "not_found", message, nil)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, "conflict", message, nil)
}

// Internal hides err behind a generic message; err is kept for logging.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "internal_error", "Internal server error", err)
}

// From returns the *Error inside err, or wraps err as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// StatusOf is a shorthand used mostly by tests.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
