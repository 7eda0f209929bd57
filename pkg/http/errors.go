package http

import (
	"fmt"
	"net/http"
)

// AppError carries the status and machine-readable code a handler wants to
// answer with. Err stays server side and is never serialized.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func statusError(status int, code string) func(string) *AppError {
	return func(msg string) *AppError {
		return &AppError{Code: code, Message: msg, Status: status}
	}
}

var (
	BadRequestError  = statusError(http.StatusBadRequest, "ERR_BAD_REQUEST")
	ForbiddenError   = statusError(http.StatusForbidden, "ERR_FORBIDDEN")
	NotFoundError    = statusError(http.StatusNotFound, "ERR_NOT_FOUND")
	ConflictError    = statusError(http.StatusConflict, "ERR_CONFLICT")
	InternalError    = statusError(http.StatusInternalServerError, "ERR_INTERNAL")
	UnavailableError = statusError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE")
)
