package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
)

func usersGraph(t *testing.T) (*Graph, *table.Table) {
	t.Helper()
	s, err := schema.Compile(schema.Decl{
		Name:  "users",
		Attrs: []string{"id(auto)", "name", "role"},
		Funcs: []string{"listAll", "get(id)", "list(role)"},
	})
	require.NoError(t, err)
	tbl, err := table.New(s, table.WithLogger(quietLogger()))
	require.NoError(t, err)

	for _, u := range []map[string]any{
		{"name": "ada", "role": "admin"},
		{"name": "bob", "role": "dev"},
		{"name": "cy", "role": "dev"},
	} {
		_, err := tbl.Insert(obj(u))
		require.NoError(t, err)
	}

	g := newGraph(t)
	require.NoError(t, g.MountTable(tbl))
	return g, tbl
}

func TestMountTableDeclarations(t *testing.T) {
	g, _ := usersGraph(t)

	var decls []string
	for _, h := range g.Handlers() {
		decls = append(decls, h.Decl())
	}
	assert.Equal(t, []string{
		"users $id -> name role",
		"users $role -> id name",
		"users -> id name role",
	}, decls)
}

func TestQueryTableGet(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users id=1 name", nil))
	require.Nil(t, c.Err())
	assert.Equal(t, []ir.IRObject{
		obj(map[string]any{"users": nil, "id": 1, "name": "ada"}),
	}, c.Items())
}

func TestQueryTableGetWithParameter(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users id=$who name role", ir.IRObject{"who": ir.IRInt(2)}))
	require.Nil(t, c.Err())
	assert.Equal(t, []ir.IRObject{
		obj(map[string]any{"users": nil, "id": 2, "name": "bob", "role": "dev"}),
	}, c.Items())
}

func TestQueryTableGetMissing(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users id=99 name", nil))
	assert.Equal(t, []stream.EventType{stream.TypeDone}, c.Types())
}

func TestQueryTableList(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users role=dev name", nil))
	require.Nil(t, c.Err())
	assert.Equal(t, []ir.IRObject{
		obj(map[string]any{"users": nil, "role": "dev", "name": "bob"}),
		obj(map[string]any{"users": nil, "role": "dev", "name": "cy"}),
	}, c.Items())
}

func TestQueryTableListAll(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users name", nil))
	require.Nil(t, c.Err())
	assert.Len(t, c.Items(), 3)
	assert.Equal(t, ir.IRString("cy"), c.Items()[2]["name"])
}

func TestQueryTableSeesLaterWrites(t *testing.T) {
	g, tbl := usersGraph(t)

	_, err := tbl.Insert(obj(map[string]any{"name": "dee", "role": "ops"}))
	require.NoError(t, err)

	c := stream.Collect(g.Query(t.Context(), "users role=ops id", nil))
	assert.Equal(t, []ir.IRObject{obj(map[string]any{"users": nil, "role": "ops", "id": 4})}, c.Items())
}

func TestQueryNoHandler(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "orders id=1", nil))
	assert.Equal(t, []stream.EventType{stream.TypeFail}, c.Types())
	assert.Equal(t, stream.ErrTypeNoHandlerFound, c.Err().ErrorType)
	assert.Equal(t, ir.IRString("orders id=1"), c.Err().Related[0]["query"])
}

func TestQueryParseError(t *testing.T) {
	g, _ := usersGraph(t)

	c := stream.Collect(g.Query(t.Context(), "users id=(", nil))
	require.NotNil(t, c.Err())
	assert.Equal(t, stream.ErrTypeParse, c.Err().ErrorType)
	assert.Equal(t, ir.IRString("users id=("), c.Err().Related[0]["query"])
}

func TestNestedQuery(t *testing.T) {
	g, _ := usersGraph(t)
	g.Mount(MustHandler("greet $id -> greeting", func(task *Task) (any, error) {
		inner := stream.Collect(task.Run("users id=$id name", ir.IRObject{"id": task.Get("id")}))
		if err := inner.Err(); err != nil {
			return nil, err
		}
		var out []ir.IRObject
		for _, u := range inner.Items() {
			out = append(out, ir.IRObject{"greeting": ir.IRString(fmt.Sprintf("hi %s", u["name"]))})
		}
		return out, nil
	}))

	c := stream.Collect(g.Query(t.Context(), "greet id=2 greeting", nil))
	require.Nil(t, c.Err())
	assert.Equal(t, []ir.IRObject{
		obj(map[string]any{"greet": nil, "id": 2, "greeting": "hi bob"}),
	}, c.Items())
}

func TestNestedQueryCycle(t *testing.T) {
	g := newGraph(t)
	calls := 0
	g.Mount(MustHandler("loop", func(task *Task) (any, error) {
		calls++
		return task.Run("loop", nil), nil
	}))

	c := stream.Collect(g.Query(t.Context(), "loop", nil))
	require.NotNil(t, c.Err())
	assert.Contains(t, c.Err().ErrorMessage, string(ErrCodeCycleDetected))
	assert.Equal(t, 1, calls)
}

func TestNestedQueryDepth(t *testing.T) {
	g := newGraph(t, WithMaxDepth(3))
	deepest := int64(-1)
	g.Mount(MustHandler("down n(integer)", func(task *Task) (any, error) {
		n, _ := task.Int("n")
		deepest = n
		return task.Run(fmt.Sprintf("down n=%d", n+1), nil), nil
	}))

	c := stream.Collect(g.Query(t.Context(), "down n=0", nil))
	require.NotNil(t, c.Err())
	assert.Contains(t, c.Err().ErrorMessage, string(ErrCodeDepthExceeded))
	assert.Equal(t, int64(2), deepest)
}

func TestNestedQueryDepthUnlimited(t *testing.T) {
	g := newGraph(t, WithMaxDepth(0))
	deepest := int64(-1)
	g.Mount(MustHandler("down n(integer)", func(task *Task) (any, error) {
		n, _ := task.Int("n")
		deepest = n
		if n == 50 {
			return ir.IRObject{"n": ir.IRInt(n)}, nil
		}
		return task.Run(fmt.Sprintf("down n=%d", n+1), nil), nil
	}))

	c := stream.Collect(g.QueryWithVerb(t.Context(), verbRun, "down n=0", nil))
	require.Nil(t, c.Err())
	assert.Len(t, c.Items(), 1)
	assert.Equal(t, int64(50), deepest)
}
