package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the API reports to clients: a stable machine code,
// a human message, and the HTTP status it maps to. The wrapped cause never
// leaves the process.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// Wrap attaches an internal cause for logs and errors.Is chains.
func (e *AppError) Wrap(err error) *AppError {
	e.cause = err
	return e
}

func BadRequestError(msg string) *AppError {
	return &AppError{Code: "bad_request", Message: msg, Status: http.StatusBadRequest}
}

func NotFoundError(msg string) *AppError {
	return &AppError{Code: "not_found", Message: msg, Status: http.StatusNotFound}
}

func TooManyRequestsError(msg string) *AppError {
	return &AppError{Code: "rate_limited", Message: msg, Status: http.StatusTooManyRequests}
}

func InternalError(msg string) *AppError {
	return &AppError{Code: "internal", Message: msg, Status: http.StatusInternalServerError}
}
