package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies an application error for clients and for the access log.
type Category string

const (
	CategoryAuth       Category = "AUTH"
	CategoryValidation Category = "VALIDATION"
	CategoryPermission Category = "PERMISSION"
	CategoryBusiness   Category = "BUSINESS"
	CategorySystem     Category = "SYSTEM"
)

// Error is an application-layer error that maps directly to an HTTP response.
// Code doubles as the HTTP status.
type Error struct {
	Code     int
	Message  string
	Category Category
	Details  map[string]any

	// cause is retained for logs only; it never reaches the client.
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code int, category Category, message string) *Error {
	return &Error{Code: code, Message: message, Category: category}
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, CategoryAuth, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CategoryPermission, message)
}

func Validation(code int, message string) *Error {
	return New(code, CategoryValidation, message)
}

func Business(code int, message string) *Error {
	return New(code, CategoryBusiness, message)
}

// System wraps an infrastructure failure. The cause is kept for logging and
// unwrapping but the client only ever sees the message.
func System(message string, cause error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: message, Category: CategorySystem, cause: cause}
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Normalize collapses an arbitrary error into an *Error. Anything that is not
// already typed becomes an opaque 500 SYSTEM so internal detail never leaks.
func Normalize(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	return &Error{Code: http.StatusInternalServerError, Message: "internal error", Category: CategorySystem, cause: err}
}
