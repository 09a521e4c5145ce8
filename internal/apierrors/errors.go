package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes. They are logged with every error response.
const (
	CodeInvalidEmail      = "INVALID_EMAIL"
	CodeSpamRejected      = "SPAM_REJECTED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeAlreadyOnWaitlist = "ALREADY_ON_WAITLIST"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
)

// Messages returned to clients.
const (
	MessageInvalidEmail      = "A valid email address is required."
	MessageSpamRejected      = "This email domain is not allowed."
	MessageRateLimitExceeded = "Daily email limit reached. Please try again tomorrow."
	MessageAlreadyOnWaitlist = "You are already on the waitlist."
	MessageSaveFailed        = "There was an error saving your request. Please try again."
	MessageNotFound          = "Not found."
	MessageMethodNotAllowed  = "Method not allowed."
)

// APIError is an error with the HTTP status and client-safe message it maps
// to. Err keeps the internal cause for logging.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// BadRequest creates a 400 error
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// Forbidden creates a 403 error
func Forbidden(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusForbidden, Code: code, Message: message}
}

// NotFound creates a 404 error
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// MethodNotAllowed creates a 405 error
func MethodNotAllowed() *APIError {
	return &APIError{StatusCode: http.StatusMethodNotAllowed, Code: CodeMethodNotAllowed, Message: MessageMethodNotAllowed}
}

// Conflict creates a 409 error
func Conflict(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: code, Message: message}
}

// TooManyRequests creates a 429 error
func TooManyRequests(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusTooManyRequests, Code: code, Message: message}
}

// InternalError creates a sanitized 500 error - never exposes internal details
func InternalError(code string, internalErr error) *APIError {
	return &APIError{StatusCode: http.StatusInternalServerError, Code: code, Message: MessageSaveFailed, Err: internalErr}
}
