package table

import (
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// mapIndex holds one item per key. Inserting an existing key replaces the
// stored item; uniqueness policy is enforced by the table before that.
type mapIndex struct {
	ix    schema.IndexSchema
	store *orderedStore[schema.Key, ir.IRObject]
}

func newMapIndex(ix schema.IndexSchema) *mapIndex {
	return &mapIndex{ix: ix, store: newOrderedStore[schema.Key, ir.IRObject]()}
}

func (m *mapIndex) Schema() schema.IndexSchema { return m.ix }

func (m *mapIndex) Insert(item ir.IRObject) error {
	m.store.put(m.ix.KeyOf(item), item)
	return nil
}

func (m *mapIndex) Get(key schema.Key) (ir.IRObject, bool, error) {
	item, ok := m.store.get(key)
	return item, ok, nil
}

func (m *mapIndex) List(key schema.Key) ([]ir.IRObject, error) {
	if item, ok := m.store.get(key); ok {
		return []ir.IRObject{item}, nil
	}
	return nil, nil
}

func (m *mapIndex) Has(key schema.Key) (bool, error) {
	_, ok := m.store.get(key)
	return ok, nil
}

func (m *mapIndex) Keys() ([]schema.Key, error) {
	entries := m.store.entries()
	keys := make([]schema.Key, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys, nil
}

func (m *mapIndex) Items() []ir.IRObject {
	return m.ItemsWhere(nil)
}

func (m *mapIndex) ItemsWhere(pred func(ir.IRObject) bool) []ir.IRObject {
	var out []ir.IRObject
	for _, e := range m.store.entries() {
		if pred == nil || pred(e.val) {
			out = append(out, e.val)
		}
	}
	return out
}

func (m *mapIndex) DeleteKey(key schema.Key) error {
	m.store.remove(key)
	return nil
}

func (m *mapIndex) DeleteItem(key schema.Key, item ir.IRObject) error {
	if cur, ok := m.store.get(key); ok && ir.SameObject(cur, item) {
		m.store.remove(key)
	}
	return nil
}

func (m *mapIndex) DeleteWhere(pred func(ir.IRObject) bool) int {
	n := 0
	for _, e := range m.store.entries() {
		if pred(e.val) {
			m.store.remove(e.key)
			n++
		}
	}
	return n
}

func (m *mapIndex) UpdateAll(func(ir.IRObject) ir.IRObject) error {
	return unsupported(m.ix, "updateAll")
}

func (m *mapIndex) UpdateKey(key schema.Key, fn func(ir.IRObject) ir.IRObject) error {
	if cur, ok := m.store.get(key); ok {
		m.store.put(key, fn(cur))
	}
	return nil
}

func (m *mapIndex) Count() int { return m.store.len() }

func (m *mapIndex) Clear() { m.store.clear() }
