package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyCompilesOnce(t *testing.T) {
	lazy := Lazy(Decl{Name: "t", Attrs: []string{"a"}, Funcs: []string{"get(a)"}})
	assert.Equal(t, "t", lazy.Name())

	var wg sync.WaitGroup
	results := make([]*Schema, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := lazy.Get()
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestLazyCachesError(t *testing.T) {
	lazy := Lazy(Decl{Name: "t", Funcs: []string{"nope"}})
	_, err1 := lazy.Get()
	_, err2 := lazy.Get()
	require.Error(t, err1)
	assert.Same(t, err1, err2)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Decl{Name: "users", Attrs: []string{"id"}, Funcs: []string{"get(id)"}}))
	require.NoError(t, r.Register(Decl{Name: "groups", Attrs: []string{"name"}, Funcs: []string{"list(name)"}}))
	assert.Error(t, r.Register(Decl{Name: "users"}))

	_, ok := r.Get("users")
	assert.False(t, ok, "nothing is compiled before Init")

	require.NoError(t, r.Init())
	s, ok := r.Get("users")
	require.True(t, ok)
	assert.Equal(t, "users", s.Name())
	assert.Equal(t, []string{"groups", "users"}, r.Names())

	assert.Error(t, r.Register(Decl{Name: "late"}))
	assert.Error(t, r.Init())
}

func TestRegistryInitReportsAllErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Decl{Name: "a", Funcs: []string{"bad1"}}))
	require.NoError(t, r.Register(Decl{Name: "b", Funcs: []string{"bad2"}}))

	err := r.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad1")
	assert.Contains(t, err.Error(), "bad2")
	assert.True(t, IsCompileError(err))
}
