package table

import (
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// listIndex keeps items in insertion order without keys.
type listIndex struct {
	ix    schema.IndexSchema
	store *orderedStore[uint64, ir.IRObject]
	pos   map[uintptr]uint64
	seq   uint64
}

func newListIndex(ix schema.IndexSchema) *listIndex {
	return &listIndex{
		ix:    ix,
		store: newOrderedStore[uint64, ir.IRObject](),
		pos:   make(map[uintptr]uint64),
	}
}

func (l *listIndex) Schema() schema.IndexSchema { return l.ix }

func (l *listIndex) Insert(item ir.IRObject) error {
	l.seq++
	l.store.put(l.seq, item)
	l.pos[ir.Identity(item)] = l.seq
	return nil
}

func (l *listIndex) Get(schema.Key) (ir.IRObject, bool, error) {
	return nil, false, unsupported(l.ix, "get")
}

func (l *listIndex) List(schema.Key) ([]ir.IRObject, error) {
	return nil, unsupported(l.ix, "list")
}

func (l *listIndex) Has(schema.Key) (bool, error) {
	return false, unsupported(l.ix, "has")
}

func (l *listIndex) Keys() ([]schema.Key, error) {
	return nil, unsupported(l.ix, "keys")
}

func (l *listIndex) Items() []ir.IRObject {
	return l.ItemsWhere(nil)
}

func (l *listIndex) ItemsWhere(pred func(ir.IRObject) bool) []ir.IRObject {
	var out []ir.IRObject
	for _, e := range l.store.entries() {
		if pred == nil || pred(e.val) {
			out = append(out, e.val)
		}
	}
	return out
}

func (l *listIndex) DeleteKey(schema.Key) error {
	return unsupported(l.ix, "deleteKey")
}

func (l *listIndex) DeleteItem(_ schema.Key, item ir.IRObject) error {
	id := ir.Identity(item)
	if seq, ok := l.pos[id]; ok {
		l.store.remove(seq)
		delete(l.pos, id)
	}
	return nil
}

func (l *listIndex) DeleteWhere(pred func(ir.IRObject) bool) int {
	n := 0
	for _, e := range l.store.entries() {
		if pred(e.val) {
			l.store.remove(e.key)
			delete(l.pos, ir.Identity(e.val))
			n++
		}
	}
	return n
}

func (l *listIndex) UpdateAll(fn func(ir.IRObject) ir.IRObject) error {
	for _, e := range l.store.entries() {
		next := fn(e.val)
		if ir.SameObject(next, e.val) {
			continue
		}
		delete(l.pos, ir.Identity(e.val))
		l.store.put(e.key, next)
		l.pos[ir.Identity(next)] = e.key
	}
	return nil
}

func (l *listIndex) UpdateKey(schema.Key, func(ir.IRObject) ir.IRObject) error {
	return unsupported(l.ix, "updateKey")
}

func (l *listIndex) Count() int { return l.store.len() }

func (l *listIndex) Clear() {
	l.store.clear()
	l.pos = make(map[uintptr]uint64)
}
