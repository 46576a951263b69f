package table

import (
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// singleValueIndex holds at most one item. Insert replaces it.
type singleValueIndex struct {
	ix   schema.IndexSchema
	item ir.IRObject
}

func newSingleValueIndex(ix schema.IndexSchema) *singleValueIndex {
	return &singleValueIndex{ix: ix}
}

func (s *singleValueIndex) Schema() schema.IndexSchema { return s.ix }

func (s *singleValueIndex) Insert(item ir.IRObject) error {
	s.item = item
	return nil
}

// Get ignores the key: there is only one value.
func (s *singleValueIndex) Get(schema.Key) (ir.IRObject, bool, error) {
	return s.item, s.item != nil, nil
}

func (s *singleValueIndex) List(schema.Key) ([]ir.IRObject, error) {
	return nil, unsupported(s.ix, "list")
}

func (s *singleValueIndex) Has(schema.Key) (bool, error) {
	return s.item != nil, nil
}

func (s *singleValueIndex) Keys() ([]schema.Key, error) {
	return nil, unsupported(s.ix, "keys")
}

func (s *singleValueIndex) Items() []ir.IRObject {
	return s.ItemsWhere(nil)
}

func (s *singleValueIndex) ItemsWhere(pred func(ir.IRObject) bool) []ir.IRObject {
	if s.item == nil || (pred != nil && !pred(s.item)) {
		return nil
	}
	return []ir.IRObject{s.item}
}

func (s *singleValueIndex) DeleteKey(schema.Key) error {
	s.item = nil
	return nil
}

func (s *singleValueIndex) DeleteItem(_ schema.Key, item ir.IRObject) error {
	if ir.SameObject(s.item, item) {
		s.item = nil
	}
	return nil
}

func (s *singleValueIndex) DeleteWhere(pred func(ir.IRObject) bool) int {
	if s.item != nil && pred(s.item) {
		s.item = nil
		return 1
	}
	return 0
}

func (s *singleValueIndex) UpdateAll(fn func(ir.IRObject) ir.IRObject) error {
	if s.item != nil {
		s.item = fn(s.item)
	}
	return nil
}

func (s *singleValueIndex) UpdateKey(schema.Key, func(ir.IRObject) ir.IRObject) error {
	return unsupported(s.ix, "updateKey")
}

func (s *singleValueIndex) Count() int {
	if s.item == nil {
		return 0
	}
	return 1
}

func (s *singleValueIndex) Clear() { s.item = nil }
