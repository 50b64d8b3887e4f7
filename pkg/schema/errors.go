package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeMalformed          = "MALFORMED_DEFINITION"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeExecution          = "EXECUTION_ERROR"
	ErrCodeHandlerFailed      = "HANDLER_FAILED"
	ErrCodeIterationLimit     = "ITERATION_LIMIT"
	ErrCodeLoopIterationLimit = "LOOP_ITERATION_LIMIT"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeTool               = "TOOL_ERROR"
)

// WeaveError is the structured error type for all engine operations.
type WeaveError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *WeaveError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *WeaveError) Unwrap() error {
	return e.Cause
}

// NewError creates a new WeaveError.
func NewError(code, message string) *WeaveError {
	return &WeaveError{Code: code, Message: message}
}

// NewErrorf creates a new WeaveError with a formatted message.
func NewErrorf(code, format string, args ...any) *WeaveError {
	return &WeaveError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *WeaveError) WithNode(nodeID string) *WeaveError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *WeaveError) WithCause(err error) *WeaveError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *WeaveError) WithDetails(details map[string]any) *WeaveError {
	e.Details = details
	return e
}

// CodeOf returns the WeaveError code of err, or "" when err is not a WeaveError.
func CodeOf(err error) string {
	var we *WeaveError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
