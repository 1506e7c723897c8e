package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error contract. Status drives the HTTP response and
// Fields carries per-field validation messages.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WithFields returns a copy of e carrying per-field messages.
func (e *Error) WithFields(fields map[string]string) *Error {
	if e == nil || len(fields) == 0 {
		return e
	}
	clone := *e
	clone.Fields = fields
	return &clone
}

// Public returns the client-facing form of e. Server errors lose their
// message and fields so internal details never leak.
func (e *Error) Public() *Error {
	if e == nil || e.Status < http.StatusInternalServerError {
		return e
	}
	return &Error{Code: ErrInternal.Code, Message: ErrInternal.Message, Status: e.Status}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrDuplicate          = New("CONFLICT", http.StatusBadRequest, "resource already exists")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrRevisionConflict   = New("REVISION_CONFLICT", http.StatusConflict, "record was modified concurrently")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error. Unknown errors become
// INTERNAL_ERROR and keep err as the cause.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Is reports whether err carries the same code and status as target.
func Is(err error, target *Error) bool {
	var e *Error
	if !errors.As(err, &e) || e == nil || target == nil {
		return false
	}
	return e.Code == target.Code && e.Status == target.Status
}

// Clone copies a sentinel, optionally replacing its message.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
