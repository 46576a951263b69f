package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rqe/internal/ir"
)

// ErrBackpressureStop is returned by a receiver that wants no more events.
// It is a control signal, not a failure.
var ErrBackpressureStop = errors.New("stream: backpressure stop")

// ErrClosed is returned when an event is sent to a closed stream.
var ErrClosed = errors.New("stream: message after stream closed")

// ErrAlreadyReceiving is returned when SendTo is called twice.
var ErrAlreadyReceiving = errors.New("stream: receiver already attached")

// Error types carried in ErrorDetails.ErrorType.
const (
	ErrTypeNoHandlerFound   = "no_handler_found"
	ErrTypeMissingParameter = "missing_parameter"
	ErrTypeHandlerError     = "handler_error"
	ErrTypeUnhandled        = "unhandled_exception"
	ErrTypeSchemaMismatch   = "schema_mismatch"
	ErrTypeProtocol         = "protocol_error"
	ErrTypeInvalidParameter = "invalid_parameter"
	ErrTypeParse            = "parse_error"
)

// ErrorDetails is the failure payload of a fail event.
type ErrorDetails struct {
	ErrorType    string        `json:"errorType"`
	ErrorMessage string        `json:"errorMessage"`
	Related      []ir.IRObject `json:"related,omitempty"`
}

// Error implements the error interface.
func (d *ErrorDetails) Error() string {
	if d.ErrorType == "" {
		return d.ErrorMessage
	}
	var b strings.Builder
	b.WriteString(d.ErrorType)
	b.WriteString(": ")
	b.WriteString(d.ErrorMessage)
	for _, r := range d.Related {
		b.WriteString(" ")
		b.WriteString(ir.MustCanonical(r))
	}
	return b.String()
}

// NewErrorDetails builds an ErrorDetails with a formatted message.
func NewErrorDetails(errorType, format string, args ...any) *ErrorDetails {
	return &ErrorDetails{ErrorType: errorType, ErrorMessage: fmt.Sprintf(format, args...)}
}

// WithRelated returns a copy of d with an extra related object.
func (d *ErrorDetails) WithRelated(related ir.IRObject) *ErrorDetails {
	out := *d
	out.Related = append(append([]ir.IRObject(nil), d.Related...), related)
	return &out
}

// ToErrorDetails converts any error into ErrorDetails. ErrorDetails already
// in the chain are returned unchanged.
func ToErrorDetails(err error) *ErrorDetails {
	var details *ErrorDetails
	if errors.As(err, &details) {
		return details
	}
	return &ErrorDetails{ErrorType: ErrTypeHandlerError, ErrorMessage: err.Error()}
}

// ToIR converts the details to an IRObject.
func (d *ErrorDetails) ToIR() ir.IRObject {
	obj := ir.IRObject{
		"errorType":    ir.IRString(d.ErrorType),
		"errorMessage": ir.IRString(d.ErrorMessage),
	}
	if len(d.Related) > 0 {
		related := make(ir.IRArray, len(d.Related))
		for i, r := range d.Related {
			related[i] = r
		}
		obj["related"] = related
	}
	return obj
}

// ErrorDetailsFromIR is the inverse of ToIR.
func ErrorDetailsFromIR(obj ir.IRObject) *ErrorDetails {
	d := &ErrorDetails{}
	if s, ok := obj["errorType"].(ir.IRString); ok {
		d.ErrorType = string(s)
	}
	if s, ok := obj["errorMessage"].(ir.IRString); ok {
		d.ErrorMessage = string(s)
	}
	if related, ok := obj["related"].(ir.IRArray); ok {
		for _, r := range related {
			if o, ok := r.(ir.IRObject); ok {
				d.Related = append(d.Related, o)
			}
		}
	}
	return d
}
