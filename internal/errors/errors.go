package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a proofd error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrDocumentNotOpen   ErrorCode = "DOCUMENT_NOT_OPEN"  // 404
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrDocumentOpen      ErrorCode = "DOCUMENT_OPEN"      // 409
	ErrEntryExists       ErrorCode = "ENTRY_EXISTS"       // 409
	ErrCheckFailed       ErrorCode = "CHECK_FAILED"       // 502
	ErrEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE" // 503
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// ProofError represents a structured error with code, status, and details.
type ProofError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ProofError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *ProofError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ProofError {
	return &ProofError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewDocumentNotOpen creates a 404 error for a URI without a live session.
func NewDocumentNotOpen(uri string) *ProofError {
	return &ProofError{
		Code:    ErrDocumentNotOpen,
		Status:  404,
		Message: fmt.Sprintf("document not open: %s", uri),
		Details: map[string]any{"uri": uri},
	}
}

// NewNotFound creates a 404 error for a missing workspace entry.
func NewNotFound(identifier string) *ProofError {
	return &ProofError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewDocumentOpen creates a 409 error when a URI is opened twice.
func NewDocumentOpen(uri string) *ProofError {
	return &ProofError{
		Code:    ErrDocumentOpen,
		Status:  409,
		Message: fmt.Sprintf("document already open: %s", uri),
		Details: map[string]any{"uri": uri},
	}
}

// NewEntryExists creates a 409 error for duplicate workspace entries.
func NewEntryExists(workspace, kind, value string) *ProofError {
	return &ProofError{
		Code:    ErrEntryExists,
		Status:  409,
		Message: fmt.Sprintf("%s %q already exists in workspace %q", kind, value, workspace),
		Details: map[string]any{"workspace": workspace, "kind": kind, "value": value},
	}
}

// NewCheckFailed creates a 502 error when the configuration/check chain fails.
func NewCheckFailed(stage string, err error) *ProofError {
	msg := stage + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", stage, err)
	}
	return &ProofError{
		Code:    ErrCheckFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"stage": stage},
		cause:   err,
	}
}

// NewEngineUnavailable creates a 503 error when the rule engine cannot be reached.
func NewEngineUnavailable(endpoint string, err error) *ProofError {
	return &ProofError{
		Code:    ErrEngineUnavailable,
		Status:  503,
		Message: fmt.Sprintf("rule engine unavailable at %s", endpoint),
		Details: map[string]any{"endpoint": endpoint},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ProofError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ProofError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err, or anything it wraps, is a ProofError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *ProofError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}
