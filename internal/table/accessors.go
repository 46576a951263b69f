package table

import (
	"fmt"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
)

// accessor is a bound function reachable through Call.
type accessor func(args []any) (any, error)

// bind builds the accessor for every function of the schema. Behavior is
// chosen here, once per function, by kind.
func (t *Table) bind() error {
	t.accessors = make(map[string]accessor)
	for _, f := range t.schema.Funcs() {
		a, err := t.accessorFor(f)
		if err != nil {
			return err
		}
		t.accessors[f.PublicName] = a
	}
	return nil
}

func (t *Table) accessorFor(f schema.Func) (accessor, error) {
	name := f.PublicName
	switch f.Kind {
	case schema.FuncEach:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 0); err != nil {
				return nil, err
			}
			return t.Each(), nil
		}, nil

	case schema.FuncInsert:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			item, err := toObject(name, args[0])
			if err != nil {
				return nil, err
			}
			return t.Insert(item)
		}, nil

	case schema.FuncGet:
		return keyed(name, func(vals []ir.IRValue) (any, error) { return t.Get(name, vals...) }), nil
	case schema.FuncHas:
		return keyed(name, func(vals []ir.IRValue) (any, error) { return t.Has(name, vals...) }), nil
	case schema.FuncList:
		return keyed(name, func(vals []ir.IRValue) (any, error) { return t.List(name, vals...) }), nil
	case schema.FuncDelete:
		return keyed(name, func(vals []ir.IRValue) (any, error) { return t.Delete(name, vals...) }), nil

	case schema.FuncUpdate:
		return func(args []any) (any, error) {
			if len(args) == 0 {
				return nil, &ArgumentError{Func: name, Message: "missing update callback"}
			}
			cb, err := toUpdateFunc(name, args[len(args)-1])
			if err != nil {
				return nil, err
			}
			vals, err := toValues(name, args[:len(args)-1])
			if err != nil {
				return nil, err
			}
			return t.Update(name, vals, cb)
		}, nil

	case schema.FuncGroupBy:
		return nullary(name, func() (any, error) { return t.GroupBy(name) }), nil
	case schema.FuncListAll:
		return nullary(name, func() (any, error) { return t.ListAll() }), nil
	case schema.FuncCount:
		return nullary(name, func() (any, error) { return t.Count() }), nil
	case schema.FuncFirst:
		return nullary(name, func() (any, error) { return t.First() }), nil
	case schema.FuncDeleteAll:
		return nullary(name, func() (any, error) { return nil, t.DeleteAll() }), nil
	case schema.FuncGetStatus, schema.FuncStatus:
		return nullary(name, func() (any, error) { return t.Status(), nil }), nil

	case schema.FuncListen:
		return func(args []any) (any, error) {
			var opts ListenOptions
			switch len(args) {
			case 0:
			case 1:
				o, ok := args[0].(ListenOptions)
				if !ok {
					return nil, argTypeError(name, "ListenOptions", args[0])
				}
				opts = o
			default:
				return nil, expectArgs(name, args, 1)
			}
			return t.Listen(opts)
		}, nil

	case schema.FuncDiff:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			other, ok := args[0].(*Table)
			if !ok {
				return nil, argTypeError(name, "*Table", args[0])
			}
			return t.Diff(other)
		}, nil

	case schema.FuncReplaceAll:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			items, ok := args[0].([]ir.IRObject)
			if !ok {
				return nil, argTypeError(name, "[]ir.IRObject", args[0])
			}
			return nil, t.ReplaceAll(items)
		}, nil

	case schema.FuncUpgradeSchema:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			funcs, ok := args[0].([]string)
			if !ok {
				return nil, argTypeError(name, "[]string", args[0])
			}
			return nil, t.UpgradeSchema(funcs)
		}, nil

	case schema.FuncReceiveUpdate:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			evt, ok := args[0].(stream.Event)
			if !ok {
				return nil, argTypeError(name, "stream.Event", args[0])
			}
			return nil, t.ReceiveUpdate(evt)
		}, nil

	case schema.FuncListenToStream:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 1); err != nil {
				return nil, err
			}
			s, ok := args[0].(*stream.Stream)
			if !ok {
				return nil, argTypeError(name, "*stream.Stream", args[0])
			}
			return nil, t.ListenToStream(s)
		}, nil

	case schema.FuncItemEquals:
		return func(args []any) (any, error) {
			if err := expectArgs(name, args, 2); err != nil {
				return nil, err
			}
			a, err := toObject(name, args[0])
			if err != nil {
				return nil, err
			}
			b, err := toObject(name, args[1])
			if err != nil {
				return nil, err
			}
			return t.ItemEquals(a, b)
		}, nil

	case schema.FuncItemToUniqueKey:
		return unaryObject(name, func(item ir.IRObject) (any, error) { return t.ItemToUniqueKey(item) }), nil
	case schema.FuncDeleteItem:
		return unaryObject(name, func(item ir.IRObject) (any, error) { return nil, t.DeleteItem(item) }), nil
	case schema.FuncGetUsingUniqueKey:
		return keyed(name, func(vals []ir.IRValue) (any, error) {
			if len(vals) != 1 {
				return nil, expectArgs(name, make([]any, len(vals)), 1)
			}
			return t.GetUsingUniqueKey(vals[0])
		}), nil
	case schema.FuncDeleteUsingUniqueKey:
		return keyed(name, func(vals []ir.IRValue) (any, error) {
			if len(vals) != 1 {
				return nil, expectArgs(name, make([]any, len(vals)), 1)
			}
			return t.DeleteUsingUniqueKey(vals[0])
		}), nil
	}
	return nil, fmt.Errorf("table %q: no accessor for %s (kind %d)", t.Name(), name, f.Kind)
}

// Call invokes a function by public name with Go or IR arguments. Unknown
// names return *UnsupportedOperationError.
func (t *Table) Call(name string, args ...any) (any, error) {
	a, ok := t.accessors[name]
	if !ok {
		return nil, &UnsupportedOperationError{Table: t.Name(), Func: name}
	}
	return a(args)
}

func keyed(name string, fn func([]ir.IRValue) (any, error)) accessor {
	return func(args []any) (any, error) {
		vals, err := toValues(name, args)
		if err != nil {
			return nil, err
		}
		return fn(vals)
	}
}

func nullary(name string, fn func() (any, error)) accessor {
	return func(args []any) (any, error) {
		if err := expectArgs(name, args, 0); err != nil {
			return nil, err
		}
		return fn()
	}
}

func unaryObject(name string, fn func(ir.IRObject) (any, error)) accessor {
	return func(args []any) (any, error) {
		if err := expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		item, err := toObject(name, args[0])
		if err != nil {
			return nil, err
		}
		return fn(item)
	}
}

func expectArgs(name string, args []any, n int) error {
	if len(args) != n {
		return &ArgumentError{Func: name, Message: fmt.Sprintf("expected %d argument(s), got %d", n, len(args))}
	}
	return nil
}

func argTypeError(name, want string, got any) error {
	return &ArgumentError{Func: name, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func toValues(name string, args []any) ([]ir.IRValue, error) {
	vals := make([]ir.IRValue, len(args))
	for i, a := range args {
		if v, ok := a.(ir.IRValue); ok {
			vals[i] = v
			continue
		}
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, &ArgumentError{Func: name, Message: fmt.Sprintf("argument %d: %v", i, err)}
		}
		vals[i] = v
	}
	return vals, nil
}

func toObject(name string, arg any) (ir.IRObject, error) {
	switch v := arg.(type) {
	case ir.IRObject:
		return v, nil
	case map[string]any:
		converted, err := ir.FromGo(v)
		if err != nil {
			return nil, &ArgumentError{Func: name, Message: err.Error()}
		}
		return converted.(ir.IRObject), nil
	}
	return nil, argTypeError(name, "object", arg)
}

func toUpdateFunc(name string, arg any) (UpdateFunc, error) {
	switch cb := arg.(type) {
	case UpdateFunc:
		return cb, nil
	case func(ir.IRObject) ir.IRObject:
		return cb, nil
	case func(ir.IRObject):
		return func(item ir.IRObject) ir.IRObject {
			cb(item)
			return nil
		}, nil
	}
	return nil, argTypeError(name, "update callback", arg)
}

// ItemToUniqueKey returns the item's primary unique key value.
func (t *Table) ItemToUniqueKey(item ir.IRObject) (ir.IRValue, error) {
	if err := t.require("item_to_uniqueKey"); err != nil {
		return nil, err
	}
	return t.uniqueKey(item), nil
}

func (t *Table) uniqueKey(item ir.IRObject) ir.IRValue {
	if v, ok := item[t.schema.PrimaryUniqueAttr()]; ok {
		return v
	}
	return ir.IRNull{}
}

// ItemEquals reports whether two items have the same primary unique key.
func (t *Table) ItemEquals(a, b ir.IRObject) (bool, error) {
	if err := t.require("itemEquals"); err != nil {
		return false, err
	}
	return ir.Equal(t.uniqueKey(a), t.uniqueKey(b)), nil
}

// GetUsingUniqueKey returns the item with the primary unique key, or nil.
func (t *Table) GetUsingUniqueKey(key ir.IRValue) (ir.IRObject, error) {
	if err := t.require("get_using_uniqueKey"); err != nil {
		return nil, err
	}
	item, _, err := t.byName[t.schema.PrimaryUniqueIndex()].Get(schema.KeyFromValues([]ir.IRValue{key}))
	return item, err
}

// DeleteUsingUniqueKey deletes the item with the primary unique key.
func (t *Table) DeleteUsingUniqueKey(key ir.IRValue) (int, error) {
	if err := t.require("delete_using_uniqueKey"); err != nil {
		return 0, err
	}
	return t.deleteUnique(key)
}

func (t *Table) deleteUnique(key ir.IRValue) (int, error) {
	ix := t.byName[t.schema.PrimaryUniqueIndex()]
	return t.deleteWithKey(nil, nil, ix, schema.KeyFromValues([]ir.IRValue{key}))
}

// DeleteItem deletes the stored item with the same primary unique key as
// item.
func (t *Table) DeleteItem(item ir.IRObject) error {
	if err := t.require("deleteItem"); err != nil {
		return err
	}
	_, err := t.deleteUnique(t.uniqueKey(item))
	return err
}
