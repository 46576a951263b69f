package engine

import (
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// VerbGet is the default query verb. Get queries reshape their output to
// the attributes the query asked for.
const VerbGet = "get"

// InputKind says where a handler input comes from.
type InputKind int

const (
	// InputTask injects the *Task.
	InputTask InputKind = iota + 1
	// InputPositional takes the text of the query tag at QueryIndex.
	InputPositional
	// InputNotProvided resolves to null.
	InputNotProvided
	// InputLiteral uses the query's literal.
	InputLiteral
	// InputParam reads the caller's parameter map at execution time.
	InputParam
)

func (k InputKind) String() string {
	switch k {
	case InputTask:
		return "task"
	case InputPositional:
		return "positional"
	case InputNotProvided:
		return "not_provided"
	case InputLiteral:
		return "literal"
	case InputParam:
		return "param"
	}
	return "unknown"
}

// InputValuePlan resolves one handler input.
type InputValuePlan struct {
	Attr       string
	Kind       InputKind
	QueryIndex int
	Literal    ir.IRValue
	ParamName  string
	Expected   ValueType
}

// OutputFilter sets one attribute of a reshaped get result: a constant
// when the query gave a literal, else the produced record's value.
type OutputFilter struct {
	Attr     string
	Constant ir.IRValue
}

// Plan is everything needed to execute one query.
type Plan struct {
	Query   *query.Query
	Verb    string
	Match   *Match
	Inputs  []InputValuePlan
	Outputs []OutputFilter

	// RequiredParams lists the inputs read from the parameter map; each
	// must be present before the handler runs.
	RequiredParams []InputValuePlan

	// KnownError is set when no handler matched. Executing the plan only
	// reports it.
	KnownError *stream.ErrorDetails
}

// Handler returns the matched handler, or nil.
func (p *Plan) Handler() *Handler {
	if p.Match == nil {
		return nil
	}
	return p.Match.Handler
}

// buildPlan turns the best match for q into a plan.
func buildPlan(m *Match, q *query.Query, verb string) *Plan {
	p := &Plan{Query: q, Verb: verb, Match: m}

	for _, ht := range m.Handler.tags {
		if ht.IsOutput {
			continue
		}
		in := InputValuePlan{Attr: ht.Attr, Expected: ht.ExpectedType, QueryIndex: -1}
		am, matched := m.ForHandlerAttr(ht.Attr)

		switch {
		case ht.Attr == TaskAttr:
			in.Kind = InputTask
		case matched && am.Kind == MatchPositional:
			in.Kind = InputPositional
			in.QueryIndex = am.QueryIndex
		case !matched:
			in.Kind = InputNotProvided
		default:
			qt := q.Tags[am.QueryIndex]
			in.QueryIndex = am.QueryIndex
			if lit, ok := qt.Literal(); ok {
				in.Kind = InputLiteral
				in.Literal = lit
			} else if qt.IsParameter {
				in.Kind = InputParam
				in.ParamName = qt.ParamName
				p.RequiredParams = append(p.RequiredParams, in)
			} else {
				in.Kind = InputNotProvided
			}
		}
		p.Inputs = append(p.Inputs, in)
	}

	if verb == VerbGet {
		for _, am := range m.Attrs {
			if am.Kind != MatchExact {
				continue
			}
			f := OutputFilter{Attr: am.QueryAttr}
			if lit, ok := q.Tags[am.QueryIndex].Literal(); ok {
				f.Constant = lit
			}
			p.Outputs = append(p.Outputs, f)
		}
	}
	return p
}

// reshape builds the output item of a get query from a produced record.
func (p *Plan) reshape(record ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, len(p.Outputs))
	for _, f := range p.Outputs {
		if f.Constant != nil {
			out[f.Attr] = f.Constant
			continue
		}
		if v, ok := record[f.Attr]; ok {
			out[f.Attr] = v
		} else {
			out[f.Attr] = ir.IRNull{}
		}
	}
	return out
}
