package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

func key(v any) schema.Key {
	return schema.KeyFromValues([]ir.IRValue{ir.MustFromGo(v)})
}

func TestMapIndex(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: "id", Type: schema.IndexMap, Attrs: []string{"id"}})

	a := obj(map[string]any{"id": 1})
	b := obj(map[string]any{"id": 2})
	require.NoError(t, ix.Insert(a))
	require.NoError(t, ix.Insert(b))

	got, ok, err := ix.Get(key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ir.SameObject(a, got))

	has, err := ix.Has(key(3))
	require.NoError(t, err)
	assert.False(t, has)

	// Replacing a key keeps its position.
	a2 := obj(map[string]any{"id": 1, "v": "new"})
	require.NoError(t, ix.Insert(a2))
	assert.Equal(t, 2, ix.Count())
	assert.Equal(t, []ir.IRObject{a2, b}, ix.Items())

	keys, err := ix.Keys()
	require.NoError(t, err)
	assert.Equal(t, []schema.Key{key(1), key(2)}, keys)

	// DeleteItem only removes the same object.
	require.NoError(t, ix.DeleteItem(key(1), a))
	assert.Equal(t, 2, ix.Count())
	require.NoError(t, ix.DeleteItem(key(1), a2))
	assert.Equal(t, 1, ix.Count())

	assert.True(t, IsUnsupported(ix.UpdateAll(func(o ir.IRObject) ir.IRObject { return o })))

	ix.Clear()
	assert.Equal(t, 0, ix.Count())
	assert.Empty(t, ix.Items())
}

func TestMultimapIndex(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: "g", Type: schema.IndexMultimap, Attrs: []string{"g"}})

	a1 := obj(map[string]any{"g": "a", "n": 1})
	b1 := obj(map[string]any{"g": "b", "n": 2})
	a2 := obj(map[string]any{"g": "a", "n": 3})
	for _, item := range []ir.IRObject{a1, b1, a2} {
		require.NoError(t, ix.Insert(item))
	}
	assert.Equal(t, 3, ix.Count())

	list, err := ix.List(key("a"))
	require.NoError(t, err)
	assert.Equal(t, []ir.IRObject{a1, a2}, list)

	// Items walk keys in first-use order.
	assert.Equal(t, []ir.IRObject{a1, a2, b1}, ix.Items())

	require.NoError(t, ix.DeleteItem(key("a"), a1))
	list, err = ix.List(key("a"))
	require.NoError(t, err)
	assert.Equal(t, []ir.IRObject{a2}, list)
	assert.Equal(t, 2, ix.Count())

	n := ix.DeleteWhere(func(o ir.IRObject) bool { return o["n"] == ir.IRInt(2) })
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ix.Count())

	require.NoError(t, ix.DeleteKey(key("a")))
	assert.Equal(t, 0, ix.Count())
	has, err := ix.Has(key("a"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMultimapListIsACopy(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: "g", Type: schema.IndexMultimap, Attrs: []string{"g"}})
	require.NoError(t, ix.Insert(obj(map[string]any{"g": "a"})))

	list, err := ix.List(key("a"))
	require.NoError(t, err)
	list[0] = nil

	again, err := ix.List(key("a"))
	require.NoError(t, err)
	assert.NotNil(t, again[0])
}

func TestListIndex(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: schema.ListIndexName, Type: schema.IndexList})

	a := obj(map[string]any{"v": 1})
	b := obj(map[string]any{"v": 1})
	require.NoError(t, ix.Insert(a))
	require.NoError(t, ix.Insert(b))
	assert.Equal(t, 2, ix.Count())

	_, _, err := ix.Get(nil)
	assert.True(t, IsUnsupported(err))
	_, err = ix.List(nil)
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(ix.DeleteKey(nil)))

	// Equal content, different objects: only b goes.
	require.NoError(t, ix.DeleteItem(nil, b))
	items := ix.Items()
	require.Len(t, items, 1)
	assert.True(t, ir.SameObject(a, items[0]))

	c := obj(map[string]any{"v": 2})
	require.NoError(t, ix.UpdateAll(func(o ir.IRObject) ir.IRObject {
		if ir.SameObject(o, a) {
			return c
		}
		return o
	}))
	items = ix.Items()
	require.Len(t, items, 1)
	assert.True(t, ir.SameObject(c, items[0]))

	// The replaced object is tracked under its new identity.
	require.NoError(t, ix.DeleteItem(nil, c))
	assert.Equal(t, 0, ix.Count())
}

func TestSingleValueIndex(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: schema.SingleValueIndexName, Type: schema.IndexSingleValue})

	_, ok, err := ix.Get(schema.SingleValueKey)
	require.NoError(t, err)
	assert.False(t, ok)

	a := obj(map[string]any{"v": 1})
	b := obj(map[string]any{"v": 2})
	require.NoError(t, ix.Insert(a))
	require.NoError(t, ix.Insert(b))
	assert.Equal(t, 1, ix.Count())

	got, ok, err := ix.Get(schema.SingleValueKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ir.SameObject(b, got))

	_, err = ix.List(schema.SingleValueKey)
	assert.True(t, IsUnsupported(err))

	require.NoError(t, ix.DeleteKey(schema.SingleValueKey))
	assert.Equal(t, 0, ix.Count())
}

func TestUnsupportedErrorMessage(t *testing.T) {
	ix := createIndex(schema.IndexSchema{Name: schema.ListIndexName, Type: schema.IndexList})
	_, err := ix.Has(nil)
	require.Error(t, err)
	assert.Equal(t, `index "list" (list) does not support has`, err.Error())
}
