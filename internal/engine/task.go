package engine

import (
	"context"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// Task is what a handler receives: its resolved inputs plus the context of
// the query being served.
type Task struct {
	ctx    context.Context
	graph  *Graph
	plan   *Plan
	inputs ir.IRObject
	params ir.IRObject
	seq    int64
}

// Context returns the execution context. It carries the nested query path.
func (t *Task) Context() context.Context { return t.ctx }

// Graph returns the graph executing the task.
func (t *Task) Graph() *Graph { return t.graph }

// Plan returns the plan being executed.
func (t *Task) Plan() *Plan { return t.plan }

// Query returns the parsed query.
func (t *Task) Query() *query.Query { return t.plan.Query }

// Seq returns the logical clock value of the query.
func (t *Task) Seq() int64 { return t.seq }

// Inputs returns a copy of the resolved inputs. Inputs that were not
// provided are null.
func (t *Task) Inputs() ir.IRObject { return t.inputs.Clone() }

// Params returns a copy of the caller's parameter map.
func (t *Task) Params() ir.IRObject { return t.params.Clone() }

// Get returns an input, or null.
func (t *Task) Get(attr string) ir.IRValue {
	if v, ok := t.inputs[attr]; ok {
		return v
	}
	return ir.IRNull{}
}

// Has reports whether an input has a non-null value.
func (t *Task) Has(attr string) bool {
	switch t.Get(attr).(type) {
	case ir.IRNull:
		return false
	}
	return true
}

// String returns a string input.
func (t *Task) String(attr string) (string, bool) {
	s, ok := t.Get(attr).(ir.IRString)
	return string(s), ok
}

// Int returns an integer input.
func (t *Task) Int(attr string) (int64, bool) {
	n, ok := t.Get(attr).(ir.IRInt)
	return int64(n), ok
}

// Run issues a nested query on the same graph. The nested query inherits
// this task's context, so cycles and excessive depth fail the nested
// stream instead of recursing forever.
func (t *Task) Run(text string, params ir.IRObject) *stream.Stream {
	return t.graph.Query(t.ctx, text, params)
}
