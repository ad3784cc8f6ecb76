package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Booking domain error codes
const (
	ErrSlotUnavailable ErrorCode = iota + 2000
	ErrInvalidTransition
	ErrBusinessClosed
	ErrDepositRequired
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// SlotUnavailable is returned when a requested slot is no longer open.
// The caller must re-query availability.
func SlotUnavailable(detail string) *AppError {
	return &AppError{
		Code:    ErrSlotUnavailable,
		Message: fmt.Sprintf("slot no longer available: %s", detail),
	}
}

// InvalidTransition is returned when a status change is not permitted
// from the appointment's current state.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to),
	}
}

// BusinessClosed is returned when no operating hours resolve for a date.
func BusinessClosed(detail string) *AppError {
	return &AppError{
		Code:    ErrBusinessClosed,
		Message: fmt.Sprintf("business is closed: %s", detail),
	}
}

// DepositRequired is returned when a booking tries to skip the payment
// step while a deposit is owed.
func DepositRequired(amount float64) *AppError {
	return &AppError{
		Code:    ErrDepositRequired,
		Message: fmt.Sprintf("a deposit of %.2f is required to complete this booking", amount),
	}
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed.
// Returns ErrInternal when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
