package engine

import (
	"errors"
	"fmt"
)

// DeclError reports an invalid handler declaration.
type DeclError struct {
	Decl    string
	Message string
}

// Error implements the error interface.
func (e *DeclError) Error() string {
	return fmt.Sprintf("handler %q: %s", e.Decl, e.Message)
}

// RuntimeError represents an error detected while executing a query.
//
// Runtime errors include:
//   - Cycle detection: a handler re-issues a query it is already serving
//   - Depth exceeded: nested queries go deeper than the graph allows
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Query is the query text being executed.
	Query string

	// Handler is the declaration of the handler involved, if any.
	Handler string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected indicates a nested query would re-enter the same
	// handler with the same query.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates nested queries exceeded the maximum depth.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("%s: %s (query=%q, handler=%q)", e.Code, e.Message, e.Query, e.Handler)
	}
	return fmt.Sprintf("%s: %s (query=%q)", e.Code, e.Message, e.Query)
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycleDetected
	}
	return false
}

// IsDepthError returns true if the error is a depth exceeded error.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

// NewCycleError creates a RuntimeError for cycle detection.
func NewCycleError(queryText, handler string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: "nested query would re-enter a handler already serving it",
		Query:   queryText,
		Handler: handler,
	}
}

// NewDepthError creates a RuntimeError for nested queries that go too deep.
func NewDepthError(queryText string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("nested query depth exceeded (%d > %d)", depth, maxDepth),
		Query:   queryText,
	}
}
