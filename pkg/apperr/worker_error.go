// Package apperr carries a stable error code and HTTP status alongside
// wrapped causes so handlers can render failures without inspecting them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeForbidden    = "FORBIDDEN"

	CodeBadRequest       = "BAD_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeMissingField     = "MISSING_FIELD"
	CodeNotFound         = "NOT_FOUND"

	CodeStorageError  = "STORAGE_ERROR"
	CodeExternalError = "EXTERNAL_ERROR"

	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

var statusByCode = map[string]int{
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeInvalidToken:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeBadRequest:       http.StatusBadRequest,
	CodeValidationFailed: http.StatusUnprocessableEntity,
	CodeInvalidInput:     http.StatusUnprocessableEntity,
	CodeMissingField:     http.StatusUnprocessableEntity,
	CodeNotFound:         http.StatusNotFound,
	CodeStorageError:     http.StatusInternalServerError,
	CodeExternalError:    http.StatusBadGateway,
	CodeInternalError:    http.StatusInternalServerError,
	CodeConfigError:      http.StatusInternalServerError,
}

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError attaches a cause and returns e for chaining
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newError(code, message string, details map[string]any, cause error) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, Status: status, Details: details, Err: cause}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(CodeUnauthorized, message, nil, nil)
}

func InvalidToken(message string) *AppError {
	return newError(CodeInvalidToken, message, nil, nil)
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(CodeForbidden, message, nil, nil)
}

// BadRequest is for bodies that cannot be decoded at all
func BadRequest(message string) *AppError {
	return newError(CodeBadRequest, message, nil, nil)
}

// ValidationFailed is for well-formed input that breaks a rule
func ValidationFailed(message string) *AppError {
	return newError(CodeValidationFailed, message, nil, nil)
}

func InvalidInput(field, reason string) *AppError {
	return newError(CodeInvalidInput,
		fmt.Sprintf("invalid input for '%s': %s", field, reason),
		map[string]any{"field": field}, nil)
}

func MissingField(field string) *AppError {
	return newError(CodeMissingField,
		fmt.Sprintf("missing required field: %s", field),
		map[string]any{"field": field}, nil)
}

// StorageError marks a failed read or write against the trip store.
func StorageError(operation string, err error) *AppError {
	return newError(CodeStorageError, "storage error: "+operation, nil, err)
}

// ExternalError marks a failed call to an LLM, mail or SMTP provider
func ExternalError(service string, err error) *AppError {
	return newError(CodeExternalError, "external service error: "+service,
		map[string]any{"service": service}, err)
}

func InternalWithError(err error) *AppError {
	return newError(CodeInternalError, "internal server error", nil, err)
}

func ConfigError(message string) *AppError {
	return newError(CodeConfigError, message, nil, nil)
}

// AsAppError unwraps err to an AppError, wrapping unknown errors as internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// HasCode reports whether err is an AppError carrying code
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
