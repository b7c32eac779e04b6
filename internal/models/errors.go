package models

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrNotFound      = errors.New("resource not found")
	ErrStateConflict = errors.New("operation conflicts with current campaign state")

	// ErrInstanceDisconnected signals that the WhatsApp instance backing a
	// campaign is not connected. Recoverable: the campaign pauses instead of
	// failing records.
	ErrInstanceDisconnected = errors.New("whatsapp instance disconnected")

	// ErrDispatchFailed marks a per-recipient gateway failure. Retried up to
	// the attempt ceiling, then recorded as a permanent record failure.
	ErrDispatchFailed = errors.New("message dispatch failed")

	// ErrRenderFailed marks a per-recipient template rendering failure.
	// Treated exactly like a dispatch failure.
	ErrRenderFailed = errors.New("template render failed")
)

// AppError represents an application-level error with context
type AppError struct {
	Code    string
	Message string
	Err     error
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

// ErrInvalidInput creates a validation error
func ErrInvalidInput(message string) error {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
	}
}

// ErrNotFoundWithMsg creates a not found error with custom message
func ErrNotFoundWithMsg(message string) error {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Err:     ErrNotFound,
	}
}

// ErrStateConflictWithMsg creates a lifecycle conflict error. Returned when a
// requested campaign transition is not valid from the current persisted
// status; the campaign itself is left untouched.
func ErrStateConflictWithMsg(message string) error {
	return &AppError{
		Code:    "STATE_CONFLICT",
		Message: message,
		Err:     ErrStateConflict,
	}
}

// ErrInstanceDisconnectedWithMsg creates an instance precondition error.
func ErrInstanceDisconnectedWithMsg(message string) error {
	return &AppError{
		Code:    "INSTANCE_DISCONNECTED",
		Message: message,
		Err:     ErrInstanceDisconnected,
	}
}
