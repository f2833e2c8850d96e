package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of a crawl failure
type ErrorType string

const (
	ErrorTypeNavigation ErrorType = "navigation"
	ErrorTypeDriver     ErrorType = "driver"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeTransfer   ErrorType = "transfer"
	ErrorTypeHTTPStatus ErrorType = "http_status"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error carries a type alongside the message and optional underlying cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around err. A nil err yields nil.
func Wrap(t ErrorType, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: message, Err: err}
}

// Classify returns the type of the outermost typed error in the chain.
// Deadline errors count as timeouts; anything else is unknown.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeUnknown
}

// IsTransient reports whether an error type belongs to the renderer family
// that is retried with the short backoff
func IsTransient(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeDriver, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsSuccessStatus reports whether an HTTP status code is 2xx
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
