package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/parley/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeForbidden            = "forbidden"
	ErrCodeValidationFailed     = "validation_failed"
	ErrCodePersistenceFailed    = "persistence_failed"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func notFoundError(msg string) *CoreError   { return coreError(ErrCodeNotFound, msg) }
func forbiddenError(msg string) *CoreError  { return coreError(ErrCodeForbidden, msg) }
func validationError(msg string) *CoreError { return coreError(ErrCodeValidationFailed, msg) }

func persistenceError(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodePersistenceFailed, Message: msg, Err: err}
}

// lookupError translates a repository lookup failure.
func lookupError(notFoundMsg, failMsg string, err error) *CoreError {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(notFoundMsg)
	}
	return persistenceError(failMsg, err)
}

// AsCoreError extracts a *CoreError from err. Unknown errors become persistence failures.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return persistenceError("internal error", err)
}
