package engine

import (
	"context"
	"errors"
	"iter"
	"strconv"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/stream"
)

// Execute runs a plan and writes the result to out.
//
// Failures never escape as errors or panics: a plan without a handler,
// a missing parameter, a handler error and a handler panic all end out
// with a fail event. A handler returning stream.ErrBackpressureStop ends
// quietly, since it means the consumer wants nothing more.
//
// Execution is synchronous up to the handler's return. A handler that
// returns a *stream.Stream keeps producing into out after Execute returns.
func (g *Graph) Execute(ctx context.Context, p *Plan, params ir.IRObject, out *stream.Stream) {
	g.execute(ctx, p, params, out, g.clock.Next())
}

func (g *Graph) execute(ctx context.Context, p *Plan, params ir.IRObject, out *stream.Stream, seq int64) {
	if p.KnownError != nil {
		_ = out.Fail(p.KnownError)
		return
	}

	h := p.Handler()
	queryText := p.Query.String()
	chain := chainFrom(ctx)
	if chain.WouldCycle(h.Decl(), queryText) {
		_ = out.FailErr(NewCycleError(queryText, h.Decl()))
		return
	}
	if err := checkDepth(chain, queryText, g.maxDepth); err != nil {
		_ = out.FailErr(err)
		return
	}

	for _, in := range p.RequiredParams {
		if _, ok := params[in.ParamName]; !ok {
			_ = out.Fail(stream.NewErrorDetails(stream.ErrTypeMissingParameter,
				"missing parameter %q for attribute %q", in.ParamName, in.Attr).
				WithRelated(ir.IRObject{"query": ir.IRString(queryText), "attr": ir.IRString(in.Attr)}))
			return
		}
	}

	task := &Task{
		ctx:    chain.push(ctx, h.Decl(), queryText),
		graph:  g,
		plan:   p,
		params: params,
		seq:    seq,
	}
	inputs, details := resolveInputs(p, params)
	if details != nil {
		_ = out.Fail(details)
		return
	}
	task.inputs = inputs

	target := out
	if len(p.Outputs) > 0 {
		target = stream.New()
		_ = stream.Pipe(stream.MapItems(target, p.reshape), out)
	}

	g.logger.Debug("executing query",
		"seq", seq,
		"query", queryText,
		"verb", p.Verb,
		"handler", h.Decl(),
		"depth", chain.Depth())

	result, err := invoke(h, task)
	deliver(target, result, err)
}

// resolveInputs evaluates the plan's inputs against the parameter map.
func resolveInputs(p *Plan, params ir.IRObject) (ir.IRObject, *stream.ErrorDetails) {
	inputs := make(ir.IRObject, len(p.Inputs))
	for _, in := range p.Inputs {
		var v ir.IRValue = ir.IRNull{}
		switch in.Kind {
		case InputTask:
			continue
		case InputPositional:
			v = ir.IRString(p.Query.Tags[in.QueryIndex].Attr)
		case InputLiteral:
			v = in.Literal
		case InputParam:
			v = params[in.ParamName]
		}

		if in.Expected == TypeInteger {
			n, ok := coerceInt(v)
			if !ok {
				return nil, stream.NewErrorDetails(stream.ErrTypeInvalidParameter,
					"attribute %q expects an integer, got %s", in.Attr, ir.Describe(v))
			}
			v = n
		}
		inputs[in.Attr] = v
	}
	return inputs, nil
}

func coerceInt(v ir.IRValue) (ir.IRValue, bool) {
	switch val := v.(type) {
	case ir.IRInt, ir.IRNull:
		return val, true
	case ir.IRString:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, false
		}
		return ir.IRInt(n), true
	}
	return nil, false
}

// invoke runs the handler, turning a panic into an unhandled_exception.
func invoke(h *Handler, task *Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stream.NewErrorDetails(stream.ErrTypeUnhandled, "handler %q panicked: %v", h.Decl(), r)
		}
	}()
	return h.run(task)
}

// deliver writes a handler result to out and ends it.
func deliver(out *stream.Stream, result any, err error) {
	defer func() {
		if r := recover(); r != nil && !out.IsClosed() {
			_ = out.Fail(stream.NewErrorDetails(stream.ErrTypeUnhandled, "handler result panicked: %v", r))
		}
	}()

	if err != nil {
		if errors.Is(err, stream.ErrBackpressureStop) {
			out.Close()
			return
		}
		_ = out.FailErr(err)
		return
	}

	switch r := result.(type) {
	case nil:
		_ = out.Done()
	case ir.IRObject:
		if r != nil && out.Item(r) != nil {
			return
		}
		_ = out.Done()
	case []ir.IRObject:
		putAll(out, func(yield func(ir.IRObject) bool) {
			for _, item := range r {
				if !yield(item) {
					return
				}
			}
		})
	case ir.IRArray:
		items := make([]ir.IRObject, 0, len(r))
		for _, v := range r {
			obj, ok := v.(ir.IRObject)
			if !ok {
				_ = out.Fail(stream.NewErrorDetails(stream.ErrTypeHandlerError, "handler returned a non-object array element %s", ir.Describe(v)))
				return
			}
			items = append(items, obj)
		}
		putAll(out, func(yield func(ir.IRObject) bool) {
			for _, item := range items {
				if !yield(item) {
					return
				}
			}
		})
	case iter.Seq[ir.IRObject]:
		putAll(out, r)
	case *stream.Stream:
		if err := stream.Pipe(r, out); err != nil {
			_ = out.FailErr(err)
		}
	default:
		_ = out.Fail(stream.NewErrorDetails(stream.ErrTypeHandlerError, "unsupported handler result %T", result))
	}
}

// putAll sends every item then done. It stops quietly when the consumer
// stops accepting events.
func putAll(out *stream.Stream, seq iter.Seq[ir.IRObject]) {
	for item := range seq {
		if item == nil {
			continue
		}
		if err := out.Item(item); err != nil {
			return
		}
	}
	_ = out.Done()
}
