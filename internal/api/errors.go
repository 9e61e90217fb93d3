package api

import (
	"errors"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
	"brokerdesk-go/internal/validation"

	"go.uber.org/zap"
)

// Code classifies a failed operation for the transport layer.
type Code string

const (
	CodeValidation          Code = "validation"
	CodeNotFound            Code = "not_found"
	CodeForbidden           Code = "forbidden"
	CodeUnauthenticated     Code = "unauthenticated"
	CodeConflict            Code = "conflict"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeInternal            Code = "internal"
)

// Error is returned next to an unsuccessful ActionResult. Message is safe to show users.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the code of err, CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeInternal
}

// Result pairs the user-facing outcome with the affected record.
type Result[T any] struct {
	models.ActionResult
	Record *T `json:"record,omitempty"`
}

func ok[T any](message string, record *T) (*Result[T], error) {
	return &Result[T]{ActionResult: models.ActionResult{Success: true, Message: message}, Record: record}, nil
}

func fail[T any](code Code, message string, cause error) (*Result[T], error) {
	return &Result[T]{ActionResult: models.ActionResult{Success: false, Message: message}},
		&Error{Code: code, Message: message, Err: cause}
}

// failWith classifies a store or validation error. Unclassified errors are logged and
// reported with the generic message.
func failWith[T any](err error, notFound, generic string) (*Result[T], error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		return fail[T](CodeValidation, vErr.Message, err)
	case errors.Is(err, store.ErrNotFound):
		return fail[T](CodeNotFound, notFound, err)
	case errors.Is(err, store.ErrInsufficientBalance):
		return fail[T](CodeInsufficientBalance, "Insufficient balance", err)
	case errors.Is(err, store.ErrNotPending):
		return fail[T](CodeConflict, "Request has already been processed", err)
	case errors.Is(err, store.ErrDuplicateEmail):
		return fail[T](CodeConflict, "Email already registered", err)
	case errors.Is(err, store.ErrPendingKycExists):
		return fail[T](CodeConflict, "You already have a pending verification request.", err)
	case errors.Is(err, store.ErrConcurrentModification):
		return fail[T](CodeConflict, "Balance changed concurrently, please retry", err)
	}
	zap.L().Error(generic, zap.Error(err))
	return fail[T](CodeInternal, generic, err)
}

// reject turns an access or lookup error into an unsuccessful result.
func reject[T any](err error) (*Result[T], error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return &Result[T]{ActionResult: models.ActionResult{Success: false, Message: apiErr.Message}}, apiErr
	}
	return failWith[T](err, "Not found", "Request failed")
}
