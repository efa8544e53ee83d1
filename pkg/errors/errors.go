package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeAnalysis          ErrorType = "analysis"
	ErrorTypeRecoveryExhausted ErrorType = "recovery_exhausted"
	ErrorTypeProxyUnavailable  ErrorType = "proxy_unavailable"
	ErrorTypePipeline          ErrorType = "pipeline"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a typed error raised by the scrape, queue or analysis layers
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a typed error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type to an underlying error
func Wrap(t ErrorType, err error, msg string) *Error {
	if err == nil {
		return New(t, msg)
	}
	return &Error{Type: t, Message: fmt.Sprintf("%s: %v", msg, err), Err: err}
}

// WithCode returns a copy of e carrying an HTTP status code
func (e *Error) WithCode(code int) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a typed error of type t
func Is(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeProxyUnavailable:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
