package harness

import "github.com/roach88/rqe/internal/ir"

// Trace entry kinds.
const (
	KindStep  = "step"
	KindEvent = "event"
)

// TraceEvent is one entry of a scenario trace: either a step the harness
// ran or an event a listener delivered.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	// Op is set for steps.
	Op    string `json:"op,omitempty"`
	Table string `json:"table,omitempty"`

	// Listener is the recording that delivered an event.
	Listener string `json:"listener,omitempty"`

	// Detail holds step arguments and outcome, or the event itself.
	Detail ir.IRObject `json:"detail,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds steps and listener events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final items of every table, keyed by table name.
	State map[string]ir.IRArray `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.IRArray),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace adds a step to the trace.
func (r *Result) AddStepTrace(seq int64, op, table string, detail ir.IRObject) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    seq,
		Kind:   KindStep,
		Op:     op,
		Table:  table,
		Detail: detail,
	})
}

// AddEventTrace adds a listener event to the trace.
func (r *Result) AddEventTrace(seq int64, table, listener string, detail ir.IRObject) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      seq,
		Kind:     KindEvent,
		Table:    table,
		Listener: listener,
		Detail:   detail,
	})
}

// toIR converts the entry for canonical serialization.
func (e TraceEvent) toIR() ir.IRObject {
	obj := ir.IRObject{
		"seq":  ir.IRInt(e.Seq),
		"kind": ir.IRString(e.Kind),
	}
	if e.Op != "" {
		obj["op"] = ir.IRString(e.Op)
	}
	if e.Table != "" {
		obj["table"] = ir.IRString(e.Table)
	}
	if e.Listener != "" {
		obj["listener"] = ir.IRString(e.Listener)
	}
	if e.Detail != nil {
		obj["detail"] = e.Detail
	}
	return obj
}
