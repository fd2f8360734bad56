package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeSessionStartup = "SESSION_STARTUP_FAILED"
	ErrCodeInvalidState   = "INVALID_SESSION_STATE"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeNavTimeout     = "NAVIGATION_TIMEOUT"
	ErrCodeSubmit         = "SUBMIT_FAILED"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type SearchError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError creates a new SearchError.
func NewSearchError(code, message string, err error) *SearchError {
	return &SearchError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *SearchError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first SearchError in err's chain,
// or ErrCodeInternal when there is none. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// SessionBroken reports whether err leaves the browser session that produced
// it in an unknown state. Such sessions must be closed rather than reused.
func SessionBroken(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNavigation, ErrCodeNavTimeout, ErrCodeInvalidState, ErrCodeSessionStartup:
		return true
	}
	return false
}
