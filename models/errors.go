package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternal           = "INTERNAL_ERROR"

	// Transform engine codes. Any of these makes the interceptor fall back
	// to the original body.
	ErrCodeMalformedDocument   = "MALFORMED_DOCUMENT"
	ErrCodeMissingContainer    = "MISSING_CONTAINER"
	ErrCodeUnsupportedRoute    = "UNSUPPORTED_ROUTE"
	ErrCodeUnsupportedEncoding = "UNSUPPORTED_ENCODING"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is the error type handlers map to HTTP status codes.
type APIError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(code, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *APIError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// TransformError reports why a response document could not be rewritten.
// Route is the route being transformed and Path the document path that
// was expected, when the failure is structural.
type TransformError struct {
	Code    string
	Route   string
	Path    string
	Message string
	Err     error
}

func (e *TransformError) Error() string {
	msg := e.Code + ": " + e.Route + ": " + e.Message
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// ToDetail converts the error to an API-facing ErrorDetail.
func (e *TransformError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Error()}
}

// NewTransformError creates a new TransformError.
func NewTransformError(code, route, message string, err error) *TransformError {
	return &TransformError{Code: code, Route: route, Message: message, Err: err}
}

// TransformCode extracts the code of a TransformError anywhere in err's
// chain, or "" when there is none.
func TransformCode(err error) string {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
