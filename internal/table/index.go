package table

import (
	sorted "github.com/tobshub/go-sortedmap"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// UpdateFunc edits an item. It may mutate the item in place and return it
// (or nil), or return a different object that replaces it.
type UpdateFunc func(item ir.IRObject) ir.IRObject

// Index is the capability contract shared by all index variants.
type Index interface {
	Schema() schema.IndexSchema

	Insert(item ir.IRObject) error
	Get(key schema.Key) (ir.IRObject, bool, error)
	List(key schema.Key) ([]ir.IRObject, error)
	Has(key schema.Key) (bool, error)
	Keys() ([]schema.Key, error)

	// Items returns a snapshot of all items in index order.
	Items() []ir.IRObject
	ItemsWhere(pred func(ir.IRObject) bool) []ir.IRObject

	DeleteKey(key schema.Key) error
	// DeleteItem removes the item stored under key that is the same object
	// as item. Indexes without keys ignore key.
	DeleteItem(key schema.Key, item ir.IRObject) error
	DeleteWhere(pred func(ir.IRObject) bool) int

	// UpdateAll replaces every item with fn's result.
	UpdateAll(fn func(ir.IRObject) ir.IRObject) error
	// UpdateKey replaces every item under key with fn's result.
	UpdateKey(key schema.Key, fn func(ir.IRObject) ir.IRObject) error

	Count() int
	Clear()
}

// createIndex builds an empty index for the schema.
func createIndex(ix schema.IndexSchema) Index {
	switch ix.Type {
	case schema.IndexMap:
		return newMapIndex(ix)
	case schema.IndexMultimap:
		return newMultimapIndex(ix)
	case schema.IndexSingleValue:
		return newSingleValueIndex(ix)
	default:
		return newListIndex(ix)
	}
}

func unsupported(ix schema.IndexSchema, op string) error {
	return &UnsupportedOperationError{Index: ix.Name, IndexType: ix.Type, Op: op}
}

// slot wraps a stored value with its insertion sequence so the sorted map
// iterates in insertion order.
type slot[V any] struct {
	seq uint64
	val V
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// orderedStore is a keyed store that iterates in first-insertion order.
// Replacing a value keeps its position.
type orderedStore[K comparable, V any] struct {
	m    *sorted.SortedMap[K, slot[V]]
	next uint64
}

func newOrderedStore[K comparable, V any]() *orderedStore[K, V] {
	return &orderedStore[K, V]{m: newSortedMap[K, V]()}
}

func newSortedMap[K comparable, V any]() *sorted.SortedMap[K, slot[V]] {
	return sorted.New[K, slot[V]](0, func(a, b slot[V]) bool { return a.seq < b.seq })
}

func (s *orderedStore[K, V]) get(k K) (V, bool) {
	sl, ok := s.m.Get(k)
	return sl.val, ok
}

func (s *orderedStore[K, V]) put(k K, v V) {
	if sl, ok := s.m.Get(k); ok {
		s.m.Replace(k, slot[V]{seq: sl.seq, val: v})
		return
	}
	s.next++
	s.m.Insert(k, slot[V]{seq: s.next, val: v})
}

func (s *orderedStore[K, V]) remove(k K) bool {
	if _, ok := s.m.Get(k); !ok {
		return false
	}
	s.m.Delete(k)
	return true
}

func (s *orderedStore[K, V]) len() int { return s.m.Len() }

func (s *orderedStore[K, V]) clear() {
	s.m = newSortedMap[K, V]()
}

// entries returns a snapshot in insertion order.
func (s *orderedStore[K, V]) entries() []entry[K, V] {
	if s.m.Len() == 0 {
		return nil
	}
	ch, err := s.m.IterCh()
	if err != nil {
		return nil
	}
	defer ch.Close()

	out := make([]entry[K, V], 0, s.m.Len())
	for rec := range ch.Records() {
		out = append(out, entry[K, V]{key: rec.Key, val: rec.Val.val})
	}
	return out
}
