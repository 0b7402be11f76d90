package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a pipeline failure by how far it is allowed to spread
type ErrorType string

const (
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeSession      ErrorType = "session"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeAsset        ErrorType = "asset"
	ErrorTypeLayout       ErrorType = "layout"
	ErrorTypeChapter      ErrorType = "chapter"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error is a typed pipeline error. Code carries the HTTP status when the
// failure came from a remote call and is zero otherwise.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type) + " error"
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an Error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Precondition reports a missing input that makes the operation a no-op
func Precondition(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypePrecondition, Message: fmt.Sprintf(format, args...)}
}

// TypeOf returns the ErrorType of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type anywhere in its chain
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsTransient reports whether the failure is scoped to a single remote call.
// Transient failures are isolated to their asset; nothing retries them.
func IsTransient(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// FromStatusCode maps an HTTP status to an ErrorType
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeSession
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode == 0:
		return ErrorTypeNetwork
	default:
		return ErrorTypeUnknown
	}
}
