package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rqe/internal/table"
)

var (
	_ table.IDGenerator = (*SequentialIDs)(nil)
	_ table.IDGenerator = (*FixedIDs)(nil)
)

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("mirror")
	assert.Equal(t, "mirror-1", gen.Generate())
	assert.Equal(t, "mirror-2", gen.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "listener-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("x")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestFixedIDs(t *testing.T) {
	gen := NewFixedIDs("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.PanicsWithValue(t, "testutil: FixedIDs exhausted", func() { gen.Generate() })
}
