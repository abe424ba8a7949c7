package errors

import (
	"errors"
	"fmt"
)

// WrappedError carries internal error detail alongside the message that is
// safe to return to API clients.
type WrappedError struct {
	Module      string
	Operation   string
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.UserMessage, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// ErrorWrapper stamps errors with a fixed module and operation.
type ErrorWrapper struct {
	module    string
	operation string
}

// NewWrapper creates an ErrorWrapper for the given module and operation.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap attaches the wrapper's context and a user-facing message.
// Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// Wrapf is Wrap with a formatted user message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// GetUserMessage extracts the user-facing message from an error chain.
// Plain errors yield their Error() string; nil yields "".
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.UserMessage
	}
	return err.Error()
}
