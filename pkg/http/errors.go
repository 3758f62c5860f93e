package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"FinSignal/internal/domain/errs"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromDomainError maps a pipeline error kind onto an AppError. The first
// matching kind wins, so an error joining several kinds reports the most
// actionable one.
func FromDomainError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var (
		code   string
		status int
	)
	switch {
	case errors.Is(err, errs.ErrValidation):
		code, status = "ERR_VALIDATION", http.StatusBadRequest
	case errors.Is(err, errs.ErrRateLimited):
		code, status = "ERR_RATE_LIMITED", http.StatusTooManyRequests
	case errors.Is(err, errs.ErrProviderUnavailable):
		code, status = "ERR_PROVIDER_UNAVAILABLE", http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrNoSentimentAvailable):
		code, status = "ERR_NO_SENTIMENT", http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrInsufficientHistory):
		code, status = "ERR_INSUFFICIENT_HISTORY", http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		code, status = "ERR_TIMEOUT", http.StatusGatewayTimeout
	default:
		return InternalError("Something went wrong").WithError(err)
	}
	return NewAppError(code, "", err.Error(), status).WithError(err)
}
