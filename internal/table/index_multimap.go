package table

import (
	"slices"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// multimapIndex holds several items per key. Keys iterate in the order they
// were first used; items under a key in insertion order.
type multimapIndex struct {
	ix    schema.IndexSchema
	store *orderedStore[schema.Key, []ir.IRObject]
	count int
}

func newMultimapIndex(ix schema.IndexSchema) *multimapIndex {
	return &multimapIndex{ix: ix, store: newOrderedStore[schema.Key, []ir.IRObject]()}
}

func (m *multimapIndex) Schema() schema.IndexSchema { return m.ix }

func (m *multimapIndex) Insert(item ir.IRObject) error {
	key := m.ix.KeyOf(item)
	bucket, _ := m.store.get(key)
	m.store.put(key, append(slices.Clip(bucket), item))
	m.count++
	return nil
}

func (m *multimapIndex) Get(key schema.Key) (ir.IRObject, bool, error) {
	bucket, _ := m.store.get(key)
	if len(bucket) == 0 {
		return nil, false, nil
	}
	return bucket[0], true, nil
}

func (m *multimapIndex) List(key schema.Key) ([]ir.IRObject, error) {
	bucket, _ := m.store.get(key)
	return slices.Clone(bucket), nil
}

func (m *multimapIndex) Has(key schema.Key) (bool, error) {
	bucket, _ := m.store.get(key)
	return len(bucket) > 0, nil
}

func (m *multimapIndex) Keys() ([]schema.Key, error) {
	entries := m.store.entries()
	keys := make([]schema.Key, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys, nil
}

func (m *multimapIndex) Items() []ir.IRObject {
	return m.ItemsWhere(nil)
}

func (m *multimapIndex) ItemsWhere(pred func(ir.IRObject) bool) []ir.IRObject {
	var out []ir.IRObject
	for _, e := range m.store.entries() {
		for _, item := range e.val {
			if pred == nil || pred(item) {
				out = append(out, item)
			}
		}
	}
	return out
}

func (m *multimapIndex) DeleteKey(key schema.Key) error {
	bucket, ok := m.store.get(key)
	if ok {
		m.count -= len(bucket)
		m.store.remove(key)
	}
	return nil
}

func (m *multimapIndex) DeleteItem(key schema.Key, item ir.IRObject) error {
	m.filterBucket(key, func(cur ir.IRObject) bool { return ir.SameObject(cur, item) })
	return nil
}

// filterBucket drops the items under key matching drop and returns how many
// were dropped. Empty buckets are removed.
func (m *multimapIndex) filterBucket(key schema.Key, drop func(ir.IRObject) bool) int {
	bucket, ok := m.store.get(key)
	if !ok {
		return 0
	}
	kept := make([]ir.IRObject, 0, len(bucket))
	for _, cur := range bucket {
		if !drop(cur) {
			kept = append(kept, cur)
		}
	}
	dropped := len(bucket) - len(kept)
	if dropped == 0 {
		return 0
	}
	m.count -= dropped
	if len(kept) == 0 {
		m.store.remove(key)
	} else {
		m.store.put(key, kept)
	}
	return dropped
}

func (m *multimapIndex) DeleteWhere(pred func(ir.IRObject) bool) int {
	n := 0
	for _, e := range m.store.entries() {
		n += m.filterBucket(e.key, pred)
	}
	return n
}

func (m *multimapIndex) UpdateAll(func(ir.IRObject) ir.IRObject) error {
	return unsupported(m.ix, "updateAll")
}

func (m *multimapIndex) UpdateKey(key schema.Key, fn func(ir.IRObject) ir.IRObject) error {
	bucket, ok := m.store.get(key)
	if !ok {
		return nil
	}
	next := make([]ir.IRObject, len(bucket))
	for i, cur := range bucket {
		next[i] = fn(cur)
	}
	m.store.put(key, next)
	return nil
}

func (m *multimapIndex) Count() int { return m.count }

func (m *multimapIndex) Clear() {
	m.store.clear()
	m.count = 0
}
