package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates listener IDs "<prefix>-1", "<prefix>-2", ...
//
// Tables given a SequentialIDs produce identical listener IDs on every run,
// which keeps journals and golden traces byte-identical.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "listener".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "listener"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID. Implements table.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedIDs hands out a fixed list of IDs in order and panics once the list
// is exhausted, so a test notices when more listeners open than expected.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
}

// NewFixedIDs creates a generator returning ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next ID. Implements table.IDGenerator.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) == 0 {
		panic("testutil: FixedIDs exhausted")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id
}
