package table

import (
	"fmt"
	"slices"

	"github.com/roach88/rqe/internal/ir"
)

// CheckConsistency verifies that every index holds the same set of items,
// compared by reference, and that each keyed index stores every item under
// the item's current key.
func (t *Table) CheckConsistency() error {
	if len(t.indexes) == 0 {
		return nil
	}
	ref := t.indexes[0]
	want := identities(ref.Items())

	for _, ix := range t.indexes {
		items := ix.Items()
		if ix.Count() != len(items) {
			return fmt.Errorf("table %q: index %q counts %d items but holds %d",
				t.Name(), ix.Schema().Name, ix.Count(), len(items))
		}
		if got := identities(items); !slices.Equal(got, want) {
			return fmt.Errorf("table %q: index %q holds %d items, index %q holds %d, or they differ",
				t.Name(), ix.Schema().Name, len(got), ref.Schema().Name, len(want))
		}
		if !ix.Schema().IsKeyed() {
			continue
		}
		for _, item := range items {
			key := ix.Schema().KeyOf(item)
			found, err := ix.List(key)
			if err != nil {
				return err
			}
			if !slices.ContainsFunc(found, func(x ir.IRObject) bool { return ir.SameObject(x, item) }) {
				return fmt.Errorf("table %q: index %q does not hold %s under its key",
					t.Name(), ix.Schema().Name, ir.DescribeObject(item, ix.Schema().Attrs))
			}
		}
	}
	return nil
}

func identities(items []ir.IRObject) []uintptr {
	ids := make([]uintptr, len(items))
	for i, item := range items {
		ids[i] = ir.Identity(item)
	}
	slices.Sort(ids)
	return ids
}
