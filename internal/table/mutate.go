package table

import (
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// Delete removes every item addressed by a delete function and returns
// how many were removed.
func (t *Table) Delete(fn string, args ...ir.IRValue) (int, error) {
	f, err := t.lookup(fn, schema.FuncDelete)
	if err != nil {
		return 0, err
	}
	ix, key, err := t.keyFor(f, args)
	if err != nil {
		return 0, err
	}
	return t.deleteWithKey(&f, args, ix, key)
}

// deleteWithKey removes the items lookup holds under key from every index.
// via is the delete function the caller invoked, nil for internal
// deletions.
func (t *Table) deleteWithKey(via *schema.Func, args []ir.IRValue, lookup Index, key schema.Key) (int, error) {
	ls := lookup.Schema()

	var matched []ir.IRObject
	if ls.Type == schema.IndexSingleValue {
		matched = lookup.Items()
	} else {
		var err error
		if matched, err = lookup.List(key); err != nil {
			return 0, err
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	for _, other := range t.indexes {
		if other == lookup {
			continue
		}
		other.DeleteWhere(func(item ir.IRObject) bool {
			return ls.KeyOf(item) == key
		})
	}
	if err := lookup.DeleteKey(key); err != nil {
		return 0, err
	}

	t.logger.Debug("items deleted", "table", t.Name(), "index", ls.Name, "key", schema.KeyString(key), "count", len(matched))
	t.emitDeletion(via, args, matched)
	return len(matched), nil
}

// DeleteAll removes every item. Listeners receive a restart.
func (t *Table) DeleteAll() error {
	if err := t.require("deleteAll"); err != nil {
		return err
	}
	t.clearAll()
	return nil
}

func (t *Table) clearAll() {
	for _, ix := range t.indexes {
		ix.Clear()
	}
	t.emitRestart()
}

// ReplaceAll removes every item and inserts items.
func (t *Table) ReplaceAll(items []ir.IRObject) error {
	if err := t.require("replaceAll"); err != nil {
		return err
	}
	t.clearAll()
	for _, item := range items {
		if _, err := t.Insert(item); err != nil {
			return err
		}
	}
	return nil
}

// Update applies cb to every item addressed by an update function.
// Without parameters the function addresses every item.
func (t *Table) Update(fn string, args []ir.IRValue, cb UpdateFunc) (int, error) {
	f, err := t.lookup(fn, schema.FuncUpdate)
	if err != nil {
		return 0, err
	}
	if cb == nil {
		return 0, &ArgumentError{Func: fn, Message: "update callback is nil"}
	}

	var matched []ir.IRObject
	if len(f.Params) == 0 {
		matched = t.Items()
	} else {
		ix, key, err := t.keyFor(f, args)
		if err != nil {
			return 0, err
		}
		if matched, err = ix.List(key); err != nil {
			return 0, err
		}
	}
	return t.applyUpdates(matched, cb)
}

// UpdateAll applies cb to every item. It needs the parameterless update
// function.
func (t *Table) UpdateAll(cb UpdateFunc) (int, error) {
	return t.Update("update", nil, cb)
}

type change struct {
	old, new ir.IRObject
	// snapshot is a copy of old taken before cb ran, so deltas carry the
	// pre-update key even when cb edits in place.
	snapshot ir.IRObject
	// oldKeys holds old's key in each keyed index, by index position.
	oldKeys []schema.Key
	// evicted is set when a later change in the same batch took this
	// item's key.
	evicted bool
}

func (ch *change) moved(i int, is schema.IndexSchema) bool {
	return is.KeyOf(ch.new) != ch.oldKeys[i]
}

// applyUpdates runs cb on every matched item, then moves the results in
// three passes: out of the keyed indexes whose key changed, back in under
// the final keys with map collisions evicted, and finally across the
// unkeyed indexes. Keys are only compared once every callback has run, so
// items of one batch may trade keys freely.
func (t *Table) applyUpdates(matched []ir.IRObject, cb UpdateFunc) (int, error) {
	if len(matched) == 0 {
		return 0, nil
	}
	listening := len(t.listeners) > 0

	changes := make([]*change, 0, len(matched))
	batch := make(map[uintptr]*change, len(matched))
	for _, old := range matched {
		ch := &change{old: old, oldKeys: make([]schema.Key, len(t.indexes))}
		if listening {
			ch.snapshot = old.Clone()
		}
		for i, ix := range t.indexes {
			if ix.Schema().IsKeyed() {
				ch.oldKeys[i] = ix.Schema().KeyOf(old)
			}
		}
		ch.new = cb(old)
		if ch.new == nil {
			ch.new = old
		}
		changes = append(changes, ch)
		batch[ir.Identity(old)] = ch
		batch[ir.Identity(ch.new)] = ch
	}

	for i, ix := range t.indexes {
		is := ix.Schema()
		if !is.IsKeyed() {
			continue
		}
		for _, ch := range changes {
			if ch.moved(i, is) {
				if err := ix.DeleteItem(ch.oldKeys[i], ch.old); err != nil {
					return 0, err
				}
				continue
			}
			if !ir.SameObject(ch.new, ch.old) {
				if err := ix.UpdateKey(ch.oldKeys[i], replaceIdentity(map[uintptr]ir.IRObject{ir.Identity(ch.old): ch.new})); err != nil {
					return 0, err
				}
			}
		}
	}

	var evicted []ir.IRObject
	for _, ch := range changes {
		if ch.evicted {
			continue
		}
		for i, ix := range t.indexes {
			is := ix.Schema()
			if !is.IsKeyed() || !ch.moved(i, is) {
				continue
			}
			newKey := is.KeyOf(ch.new)
			if is.Type == schema.IndexMap {
				if victim := t.evictForUpdate(ix, newKey, ch.new, batch); victim != nil {
					evicted = append(evicted, victim)
				}
			}
			if err := ix.Insert(ch.new); err != nil {
				return 0, err
			}
		}
	}

	replacements := make(map[uintptr]ir.IRObject)
	for _, ch := range changes {
		if !ch.evicted && !ir.SameObject(ch.new, ch.old) {
			replacements[ir.Identity(ch.old)] = ch.new
		}
	}
	if len(replacements) > 0 {
		for _, ix := range t.indexes {
			if ix.Schema().IsKeyed() {
				continue
			}
			if err := ix.UpdateAll(replaceIdentity(replacements)); err != nil {
				return 0, err
			}
		}
	}

	applied := 0
	for _, ch := range changes {
		if !ch.evicted {
			applied++
		}
	}
	t.emitUpdates(changes, evicted)
	return applied, nil
}

// evictForUpdate removes whatever holds key in a map index before updated
// is stored there. A holder from the same batch is marked evicted and
// dropped; any other holder is returned so its deletion can be reported.
func (t *Table) evictForUpdate(ix Index, key schema.Key, updated ir.IRObject, batch map[uintptr]*change) ir.IRObject {
	existing, ok, _ := ix.Get(key)
	if !ok || ir.SameObject(existing, updated) {
		return nil
	}
	t.logger.Warn("update moved item onto an occupied key; evicting previous holder",
		"table", t.Name(), "index", ix.Schema().Name, "key", schema.KeyString(key))

	ch, inBatch := batch[ir.Identity(existing)]
	if !inBatch {
		t.removeItem(existing)
		return existing
	}
	// A batch item sits under its new key in keyed indexes it already
	// reached and still under its old identity in unkeyed ones.
	ch.evicted = true
	for _, other := range t.indexes {
		if other.Schema().IsKeyed() {
			_ = other.DeleteItem(other.Schema().KeyOf(ch.new), ch.new)
		} else {
			_ = other.DeleteItem(nil, ch.old)
		}
	}
	return nil
}

func replaceIdentity(replacements map[uintptr]ir.IRObject) func(ir.IRObject) ir.IRObject {
	return func(item ir.IRObject) ir.IRObject {
		if r, ok := replacements[ir.Identity(item)]; ok {
			return r
		}
		return item
	}
}
