package schema

import (
	"errors"
	"fmt"
)

// CompileError reports a structurally invalid declaration. A schema that
// fails to compile is never returned.
type CompileError struct {
	Schema  string
	Func    string // declaration text of the offending attr or func, if any
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("schema %q: %s: %s", e.Schema, e.Func, e.Message)
	}
	return fmt.Sprintf("schema %q: %s", e.Schema, e.Message)
}

// IsCompileError reports whether err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
