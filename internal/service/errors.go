package service

import "errors"

// Stable error codes surfaced to API clients.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeModerationRejected  = "MODERATION_REJECTED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeJobFailed           = "JOB_FAILED"
	CodeNotFound            = "NOT_FOUND"
)

// Error is a pipeline failure with a stable code the transport layer maps
// to an HTTP status. Message is safe to surface to the caller.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string, details any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// AsError extracts a service error from an error chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}
