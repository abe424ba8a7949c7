// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrIndexNotBuilt indicates a search was invoked before BuildQuestionIndex.
	ErrIndexNotBuilt = errors.New("question index not built")

	// ErrNotWarmedUp indicates a matcher was used before WarmUp completed.
	ErrNotWarmedUp = errors.New("engine not warmed up")

	// ErrTaxonomyInvalid indicates the knowledge taxonomy failed validation at load time.
	ErrTaxonomyInvalid = errors.New("taxonomy invalid")

	// ErrEmbeddingUnavailable indicates the embedding backend is absent or failed.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrInvalidInput indicates caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCacheExpired indicates cached data has exceeded TTL.
	ErrCacheExpired = errors.New("cache expired")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrContextCanceled indicates context was canceled.
	ErrContextCanceled = errors.New("context canceled")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// TaxonomyError reports a malformed taxonomy entry with its dotted path.
// Construction-time only; the engine refuses to start on any TaxonomyError.
type TaxonomyError struct {
	Path    string
	Message string
}

func (e *TaxonomyError) Error() string {
	return fmt.Sprintf("taxonomy error (point=%s): %s", e.Path, e.Message)
}

func (e *TaxonomyError) Unwrap() error {
	return ErrTaxonomyInvalid
}

// NewTaxonomyError creates a new taxonomy error.
func NewTaxonomyError(path, message string) *TaxonomyError {
	return &TaxonomyError{Path: path, Message: message}
}

// BackendError represents embedding backend failures with context.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (backend=%s): %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new backend error.
func NewBackendError(backend string, err error) *BackendError {
	return &BackendError{Backend: backend, Err: err}
}

// IsNotFound checks if the error is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIndexNotBuilt checks if the error is ErrIndexNotBuilt.
func IsIndexNotBuilt(err error) bool {
	return errors.Is(err, ErrIndexNotBuilt)
}

// IsTaxonomyInvalid checks if the error is ErrTaxonomyInvalid.
func IsTaxonomyInvalid(err error) bool {
	return errors.Is(err, ErrTaxonomyInvalid)
}

// IsEmbeddingUnavailable checks if the error is ErrEmbeddingUnavailable.
func IsEmbeddingUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}

// IsInvalidInput checks if the error is ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
