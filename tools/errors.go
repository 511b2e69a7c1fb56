package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyTracked is returned when a call id is dispatched twice
	ErrAlreadyTracked = errors.New("call already tracked")
)

// ErrorType classifies tool failures on the wire
type ErrorType string

const (
	// ErrorTypeNotFound means no handler is registered for the tool name.
	// Non-recoverable: a caller configuration error.
	ErrorTypeNotFound ErrorType = "tool_not_found"
	// ErrorTypeTimeout means the handler missed its deadline. Recoverable.
	ErrorTypeTimeout ErrorType = "tool_timeout"
	// ErrorTypeExecution means the handler returned an error. Recoverable.
	ErrorTypeExecution ErrorType = "tool_execution_error"
	// ErrorTypeCancelled means the call was cancelled on purpose.
	// Non-recoverable by design.
	ErrorTypeCancelled ErrorType = "tool_cancelled"
)

// ToolError is a structured tool failure. It is converted into a wire
// response, never raised past the dispatch boundary.
type ToolError struct {
	Type        ErrorType
	Message     string
	Recoverable bool
	Err         error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NotFoundError builds the failure for an unknown tool name
func NotFoundError(toolName string) *ToolError {
	return &ToolError{
		Type:        ErrorTypeNotFound,
		Message:     fmt.Sprintf("no handler registered for tool %q", toolName),
		Recoverable: false,
	}
}

// TimeoutError builds the failure for a handler that missed its deadline
func TimeoutError(toolName string) *ToolError {
	return &ToolError{
		Type:        ErrorTypeTimeout,
		Message:     fmt.Sprintf("tool %q timed out", toolName),
		Recoverable: true,
	}
}

// ExecutionError wraps a handler failure
func ExecutionError(toolName string, err error) *ToolError {
	return &ToolError{
		Type:        ErrorTypeExecution,
		Message:     fmt.Sprintf("tool %q failed", toolName),
		Recoverable: true,
		Err:         err,
	}
}

// CancelledError builds the failure for an intentionally cancelled call
func CancelledError(toolName string) *ToolError {
	return &ToolError{
		Type:        ErrorTypeCancelled,
		Message:     fmt.Sprintf("tool %q was cancelled", toolName),
		Recoverable: false,
	}
}
