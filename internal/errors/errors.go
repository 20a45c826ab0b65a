package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a wishpair error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrAlreadyPaired  ErrorCode = "ALREADY_PAIRED"  // 409
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// WishError represents a structured error with code, status, and details.
type WishError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *WishError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *WishError {
	return &WishError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error. kind names the missing entity ("user", "pair", "wish").
func NewNotFound(kind, identifier string) *WishError {
	return &WishError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates a 409 error for duplicate keys and lost races.
func NewConflict(msg string) *WishError {
	return &WishError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewAlreadyPaired creates a 409 error when a user already belongs to an active pair.
func NewAlreadyPaired(userID, pairID string) *WishError {
	return &WishError{
		Code:    ErrAlreadyPaired,
		Status:  409,
		Message: fmt.Sprintf("user %s is already in an active pair", userID),
		Details: map[string]any{"user_id": userID, "pair_id": pairID},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *WishError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &WishError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// As extracts a *WishError from err, unwrapping as needed.
func As(err error) (*WishError, bool) {
	var wErr *WishError
	if stderrors.As(err, &wErr) {
		return wErr, true
	}
	return nil, false
}

// Is checks if an error (or anything it wraps) is a WishError with the given code.
func Is(err error, code ErrorCode) bool {
	if wErr, ok := As(err); ok {
		return wErr.Code == code
	}
	return false
}
