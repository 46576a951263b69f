package table

import (
	"errors"
	"fmt"

	"github.com/roach88/rqe/internal/schema"
)

// UnsupportedOperationError reports a call the table or one of its indexes
// cannot serve. It indicates programmer misuse, not a data problem.
type UnsupportedOperationError struct {
	Table     string
	Func      string
	Index     string
	IndexType schema.IndexType
	Op        string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Index != "" {
		return fmt.Sprintf("index %q (%s) does not support %s", e.Index, e.IndexType, e.Op)
	}
	if e.Op != "" {
		return fmt.Sprintf("table %q: %q does not support %s", e.Table, e.Func, e.Op)
	}
	return fmt.Sprintf("table %q does not support %q", e.Table, e.Func)
}

// ProtocolError reports a violation of the listening protocol, such as a
// delta naming a function the destination does not have.
type ProtocolError struct {
	Table   string
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("table %q: protocol error: %s", e.Table, e.Message)
}

// ConstraintError reports an insert that would violate a unique attribute
// declared with the error policy.
type ConstraintError struct {
	Table string
	Index string
	Key   string
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("table %q: unique constraint on (%s) violated by key %s", e.Table, e.Index, e.Key)
}

// ArgumentError reports arguments of the wrong shape passed to Call.
type ArgumentError struct {
	Func    string
	Message string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Message)
}

// IsUnsupported reports whether err is or wraps an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// IsProtocolError reports whether err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsConstraintError reports whether err is or wraps a ConstraintError.
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}
