// Package apperr carries typed application errors from services to the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of application error.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeConflict         Code = "CONFLICT"
	CodeFeatureLocked    Code = "FEATURE_LOCKED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeExternalService  Code = "EXTERNAL_SERVICE"
	CodeInternal         Code = "INTERNAL"
)

// AppError is an error with a stable code and a client-safe message.
type AppError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Cause   error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status for the error code.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeFeatureLocked:
		return http.StatusPaymentRequired
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s with ID %s not found", resource, id))
}

func Validation(format string, args ...interface{}) *AppError {
	return New(CodeValidationFailed, fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

func FeatureLocked(feature string) *AppError {
	return &AppError{
		Code:    CodeFeatureLocked,
		Message: "Your plan does not include this feature",
		Details: map[string]string{"feature": feature},
	}
}

func External(service string, cause error) *AppError {
	return &AppError{Code: CodeExternalService, Message: service + " is unavailable", Cause: cause}
}

// Wrap marks err as internal while keeping it reachable through errors.Is/As.
func Wrap(err error, message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// As extracts an AppError from err. Errors that carry none are reported as internal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: CodeInternal, Message: "Internal server error", Cause: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
