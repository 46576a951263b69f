package engine

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/stream"
)

const verbRun = "run"

func TestExecuteResultKinds(t *testing.T) {
	a := obj(map[string]any{"n": 1})
	b := obj(map[string]any{"n": 2})

	tests := []struct {
		name   string
		result any
		types  []stream.EventType
		items  []ir.IRObject
	}{
		{"nil", nil, []stream.EventType{stream.TypeDone}, nil},
		{"object", a, []stream.EventType{stream.TypeItem, stream.TypeDone}, []ir.IRObject{a}},
		{"slice", []ir.IRObject{a, b}, []stream.EventType{stream.TypeItem, stream.TypeItem, stream.TypeDone}, []ir.IRObject{a, b}},
		{"array", ir.IRArray{a, b}, []stream.EventType{stream.TypeItem, stream.TypeItem, stream.TypeDone}, []ir.IRObject{a, b}},
		{
			"iterator",
			iter.Seq[ir.IRObject](func(yield func(ir.IRObject) bool) {
				_ = yield(a) && yield(b)
			}),
			[]stream.EventType{stream.TypeItem, stream.TypeItem, stream.TypeDone},
			[]ir.IRObject{a, b},
		},
		{"stream", stream.FromItems(b), []stream.EventType{stream.TypeItem, stream.TypeDone}, []ir.IRObject{b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			g.Mount(MustHandler("produce", returning(tt.result)))

			c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "produce", nil))
			assert.Equal(t, tt.types, c.Types())
			assert.Equal(t, tt.items, c.Items())
		})
	}
}

func TestExecuteRejectsBadResults(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"scalar", 42, "unsupported handler result int"},
		{"array of scalars", ir.IRArray{ir.IRInt(1)}, "non-object array element"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			g.Mount(MustHandler("produce", returning(tt.result)))

			c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "produce", nil))
			require.NotNil(t, c.Err())
			assert.Equal(t, stream.ErrTypeHandlerError, c.Err().ErrorType)
			assert.Contains(t, c.Err().ErrorMessage, tt.want)
		})
	}
}

func TestExecuteHandlerFailures(t *testing.T) {
	t.Run("error becomes fail", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("boom", func(*Task) (any, error) {
			return nil, errors.New("disk on fire")
		}))

		c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "boom", nil))
		assert.Equal(t, []stream.EventType{stream.TypeFail}, c.Types())
		assert.Equal(t, stream.ErrTypeHandlerError, c.Err().ErrorType)
		assert.Equal(t, "disk on fire", c.Err().ErrorMessage)
	})

	t.Run("error details pass through", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("boom", func(*Task) (any, error) {
			return nil, stream.NewErrorDetails("custom", "nope")
		}))

		c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "boom", nil))
		assert.Equal(t, "custom", c.Err().ErrorType)
	})

	t.Run("panic becomes unhandled exception", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("boom", func(*Task) (any, error) {
			panic("kaput")
		}))

		var c *stream.Collector
		require.NotPanics(t, func() {
			c = stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "boom", nil))
		})
		require.NotNil(t, c.Err())
		assert.Equal(t, stream.ErrTypeUnhandled, c.Err().ErrorType)
		assert.Contains(t, c.Err().ErrorMessage, "kaput")
	})

	t.Run("backpressure stop is swallowed", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("quiet", func(*Task) (any, error) {
			return nil, stream.ErrBackpressureStop
		}))

		out := g.QueryWithVerb(t.Context(), verbRun, "quiet", nil)
		c := stream.Collect(out)
		assert.Empty(t, c.Events())
		assert.True(t, out.IsClosed())
	})
}

func TestExecuteStopsWhenConsumerStops(t *testing.T) {
	g := newGraph(t)
	var produced int
	g.Mount(MustHandler("many", func(*Task) (any, error) {
		return iter.Seq[ir.IRObject](func(yield func(ir.IRObject) bool) {
			for i := range 10 {
				produced++
				if !yield(obj(map[string]any{"i": i})) {
					return
				}
			}
		}), nil
	}))

	out := stream.New()
	var got []stream.Event
	require.NoError(t, out.SendTo(func(evt stream.Event) error {
		got = append(got, evt)
		return stream.ErrBackpressureStop
	}))

	p := g.BuildPlan(parseQuery("many"), verbRun)
	g.Execute(t.Context(), p, nil, out)

	assert.Len(t, got, 1)
	assert.Equal(t, 1, produced)
	assert.True(t, out.IsClosed())
}

func TestExecuteMissingParameter(t *testing.T) {
	g := newGraph(t)
	called := false
	g.Mount(MustHandler("user $id", func(*Task) (any, error) {
		called = true
		return nil, nil
	}))

	c := stream.Collect(g.Query(t.Context(), "user id=$x", ir.IRObject{"y": ir.IRInt(1)}))
	require.NotNil(t, c.Err())
	assert.False(t, called)
	assert.Equal(t, stream.ErrTypeMissingParameter, c.Err().ErrorType)
	assert.Equal(t, `missing parameter "x" for attribute "id"`, c.Err().ErrorMessage)
	require.Len(t, c.Err().Related, 1)
	assert.Equal(t, ir.IRString("id"), c.Err().Related[0]["attr"])
	assert.Equal(t, ir.IRString("user id=$x"), c.Err().Related[0]["query"])
}

func TestExecuteResolvesInputs(t *testing.T) {
	var seen ir.IRObject
	var seenTask *Task
	capture := func(task *Task) (any, error) {
		seen = task.Inputs()
		seenTask = task
		return nil, nil
	}

	t.Run("parameter", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("user $id opt?", capture))

		c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "user id=$x", ir.IRObject{"x": ir.IRString("u1")}))
		require.Nil(t, c.Err())
		assert.Equal(t, ir.IRObject{"user": ir.IRNull{}, "id": ir.IRString("u1"), "opt": ir.IRNull{}}, seen)
		assert.True(t, seenTask.Has("id"))
		assert.False(t, seenTask.Has("opt"))
		assert.Equal(t, ir.IRObject{"x": ir.IRString("u1")}, seenTask.Params())
	})

	t.Run("positional", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("echo text(positional)", capture))

		stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "echo hello", nil))
		s, ok := seenTask.String("text")
		require.True(t, ok)
		assert.Equal(t, "hello", s)
	})

	t.Run("integer coercion", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("page n(integer)", capture))

		c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "page n=$n", ir.IRObject{"n": ir.IRString("12")}))
		require.Nil(t, c.Err())
		n, ok := seenTask.Int("n")
		require.True(t, ok)
		assert.Equal(t, int64(12), n)
	})

	t.Run("integer rejection", func(t *testing.T) {
		g := newGraph(t)
		g.Mount(MustHandler("page n(integer)", capture))

		c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "page n=abc", nil))
		require.NotNil(t, c.Err())
		assert.Equal(t, stream.ErrTypeInvalidParameter, c.Err().ErrorType)
	})
}

func TestExecuteKnownError(t *testing.T) {
	g := newGraph(t)
	out := stream.New()
	c := stream.Collect(out)
	g.Execute(t.Context(), g.BuildPlan(parseQuery("ghost"), VerbGet), nil, out)
	require.NotNil(t, c.Err())
	assert.Equal(t, stream.ErrTypeNoHandlerFound, c.Err().ErrorType)
}
