package table

import (
	"fmt"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// DiffOp is the kind of a diff entry.
type DiffOp string

const (
	DiffAdd    DiffOp = "add"
	DiffRemove DiffOp = "remove"
	DiffChange DiffOp = "change"
)

// DiffEntry is one difference between two tables, matched by primary
// unique key. Item is the other table's version for add and change, and
// this table's for remove.
type DiffEntry struct {
	Op   DiffOp
	Key  ir.IRValue
	Item ir.IRObject
}

// Diff compares this table with other by primary unique key and content
// hash. Removes and changes come in this table's order, adds in other's.
func (t *Table) Diff(other *Table) ([]DiffEntry, error) {
	if err := t.require("diff"); err != nil {
		return nil, err
	}
	attr := t.schema.PrimaryUniqueAttr()
	keyOf := func(item ir.IRObject) (schema.Key, ir.IRValue) {
		v, ok := item[attr]
		if !ok {
			v = ir.IRNull{}
		}
		return schema.KeyFromValues([]ir.IRValue{v}), v
	}

	theirs := make(map[schema.Key]ir.IRObject)
	for _, item := range other.Items() {
		k, _ := keyOf(item)
		theirs[k] = item
	}

	var out []DiffEntry
	seen := make(map[schema.Key]bool)
	for _, mine := range t.Items() {
		k, v := keyOf(mine)
		seen[k] = true
		them, ok := theirs[k]
		if !ok {
			out = append(out, DiffEntry{Op: DiffRemove, Key: v, Item: mine})
			continue
		}
		same, err := sameContent(mine, them)
		if err != nil {
			return nil, err
		}
		if !same {
			out = append(out, DiffEntry{Op: DiffChange, Key: v, Item: them})
		}
	}
	for _, them := range other.Items() {
		k, v := keyOf(them)
		if !seen[k] {
			out = append(out, DiffEntry{Op: DiffAdd, Key: v, Item: them})
		}
	}
	return out, nil
}

func sameContent(a, b ir.IRObject) (bool, error) {
	ha, err := ir.ContentHash(a)
	if err != nil {
		return false, fmt.Errorf("diff: %w", err)
	}
	hb, err := ir.ContentHash(b)
	if err != nil {
		return false, fmt.Errorf("diff: %w", err)
	}
	return ha == hb, nil
}
