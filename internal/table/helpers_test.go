package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

func newTable(t *testing.T, attrs []string, funcs []string, opts ...Option) *Table {
	t.Helper()
	s, err := schema.Compile(schema.Decl{Name: "test", Attrs: attrs, Funcs: funcs})
	require.NoError(t, err)
	tbl, err := New(s, opts...)
	require.NoError(t, err)
	return tbl
}

func obj(m map[string]any) ir.IRObject {
	return ir.MustFromGo(m).(ir.IRObject)
}

func mustInsert(t *testing.T, tbl *Table, m map[string]any) ir.IRObject {
	t.Helper()
	item, err := tbl.Insert(obj(m))
	require.NoError(t, err)
	return item
}

func requireConsistent(t *testing.T, tbl *Table) {
	t.Helper()
	require.NoError(t, tbl.CheckConsistency())
}
