package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/stream"
)

func TestBuildPlanInputs(t *testing.T) {
	g := newGraph(t)
	g.Mount(MustHandler("cmd arg(positional) $id flag? task -> out", noop))

	p := plan(t, g, "cmd hello id=$who")
	require.Nil(t, p.KnownError)

	kinds := map[string]InputKind{}
	for _, in := range p.Inputs {
		kinds[in.Attr] = in.Kind
	}
	assert.Equal(t, map[string]InputKind{
		"task": InputTask,
		"cmd":  InputNotProvided,
		"arg":  InputPositional,
		"id":   InputParam,
		"flag": InputNotProvided,
	}, kinds)

	require.Len(t, p.RequiredParams, 1)
	assert.Equal(t, "who", p.RequiredParams[0].ParamName)
	assert.Equal(t, "id", p.RequiredParams[0].Attr)
}

func TestBuildPlanLiteralInput(t *testing.T) {
	g := newGraph(t)
	g.Mount(MustHandler("user $id", noop))

	p := plan(t, g, "user id=7")
	require.Len(t, p.Inputs, 2)
	assert.Equal(t, InputLiteral, p.Inputs[1].Kind)
	assert.Equal(t, ir.IRInt(7), p.Inputs[1].Literal)
	assert.Empty(t, p.RequiredParams)
}

func TestBuildPlanOutputs(t *testing.T) {
	g := newGraph(t)
	g.Mount(MustHandler("user $id -> name email", noop))

	p := plan(t, g, "user id=1 name")
	assert.Equal(t, []OutputFilter{
		{Attr: "user"},
		{Attr: "id", Constant: ir.IRInt(1)},
		{Attr: "name"},
	}, p.Outputs)

	shaped := p.reshape(obj(map[string]any{"id": 1, "name": "ada", "email": "a@x"}))
	assert.Equal(t, obj(map[string]any{"user": nil, "id": 1, "name": "ada"}), shaped)
}

func TestBuildPlanUnusedOptionalsAreNotOutputs(t *testing.T) {
	g := newGraph(t)
	g.Mount(MustHandler("user -> name", noop))

	p := plan(t, g, "user name extra?")
	assert.Equal(t, []OutputFilter{{Attr: "user"}, {Attr: "name"}}, p.Outputs)
}

func TestBuildPlanOtherVerbsDoNotReshape(t *testing.T) {
	g := newGraph(t)
	g.Mount(MustHandler("user -> name", noop))

	p := g.BuildPlan(parseQuery("user name"), "put")
	assert.Empty(t, p.Outputs)
	assert.Equal(t, "put", p.Verb)
}

func TestBuildPlanKnownError(t *testing.T) {
	g := newGraph(t)
	p := plan(t, g, "nothing here")
	require.NotNil(t, p.KnownError)
	assert.Equal(t, stream.ErrTypeNoHandlerFound, p.KnownError.ErrorType)
	assert.Nil(t, p.Handler())
}

func TestInputKindString(t *testing.T) {
	assert.Equal(t, "positional", InputPositional.String())
	assert.Equal(t, "not_provided", InputNotProvided.String())
	assert.Equal(t, "unknown", InputKind(0).String())
}
