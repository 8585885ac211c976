package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain rule violation. Codes map directly to API
// error responses at the transport boundary.
type ErrorCode string

const (
	CodeInvalidRequest      ErrorCode = "invalid_request"
	CodeLobbyNotFound       ErrorCode = "lobby_not_found"
	CodeNotHost             ErrorCode = "not_host"
	CodeLobbyFull           ErrorCode = "lobby_full"
	CodeLobbyNotJoinable    ErrorCode = "lobby_not_joinable"
	CodeConcurrencyConflict ErrorCode = "concurrency_conflict"
	CodeInternal            ErrorCode = "internal"
)

// Error is the structured error returned by every lobby operation. Callers
// match on Code rather than parsing messages.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a domain error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a domain error with a formatted message
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapInternal wraps an unexpected failure (storage faults included) so it
// never escapes the service layer un-translated
func WrapInternal(err error, message string) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: err}
}

// CodeOf extracts the error code from err, or CodeInternal if err is not a
// domain error
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsNotFound checks if an error is a lobby-not-found error
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeLobbyNotFound
}
