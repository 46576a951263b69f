package schema

import (
	"fmt"

	"github.com/roach88/rqe/internal/ir"
)

// Key is an index key. It is always comparable: a scalar IRValue for
// single-attribute indexes, or one of the private string types below.
type Key any

// jsonKey holds the canonical JSON of a non-scalar single-attribute value.
// A distinct type keeps it from colliding with an equal IRString.
type jsonKey string

// compositeKey holds the canonical JSON array of a multi-attribute key's
// components. Each component keeps its type, so 1 and "1" differ.
type compositeKey string

// singleValueKey is the only key of a single_value index.
type singleValueKey struct{}

// SingleValueKey is the key used by single_value indexes.
var SingleValueKey Key = singleValueKey{}

// KeyFromValues derives the key for values given in index attribute order.
//
// One value is used as is (non-scalars become canonical JSON). Several
// values become the canonical JSON of the array of them.
func KeyFromValues(values []ir.IRValue) Key {
	switch len(values) {
	case 0:
		return SingleValueKey
	case 1:
		return scalarKey(values[0])
	}

	arr := make(ir.IRArray, len(values))
	for i, v := range values {
		if v == nil {
			v = ir.IRNull{}
		}
		arr[i] = v
	}
	return compositeKey(ir.KeyString(arr))
}

func scalarKey(v ir.IRValue) Key {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}
	case ir.IRString, ir.IRInt, ir.IRBool, ir.IRNull:
		return val
	default:
		return jsonKey(ir.KeyString(val))
	}
}

// KeyOf derives the index key of an item. Missing attributes count as null.
func (ix IndexSchema) KeyOf(item ir.IRObject) Key {
	if ix.Type == IndexSingleValue {
		return SingleValueKey
	}
	values := make([]ir.IRValue, len(ix.Attrs))
	for i, a := range ix.Attrs {
		v, ok := item[a]
		if !ok {
			v = ir.IRNull{}
		}
		values[i] = v
	}
	return KeyFromValues(values)
}

// KeyString renders a key for messages.
func KeyString(k Key) string {
	switch key := k.(type) {
	case singleValueKey:
		return "(single value)"
	case jsonKey:
		return string(key)
	case compositeKey:
		return string(key)
	case ir.IRValue:
		return ir.Describe(key)
	}
	return fmt.Sprintf("%v", k)
}

// ArgsForIndex reorders args, given in the function's declared parameter
// order, into the index's attribute order.
func (f Func) ArgsForIndex(ix IndexSchema, args []ir.IRValue) ([]ir.IRValue, error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", f.PublicName, len(f.Params), len(args))
	}
	byAttr := make(map[string]ir.IRValue, len(args))
	for i, p := range f.Params {
		byAttr[p] = args[i]
	}
	out := make([]ir.IRValue, len(ix.Attrs))
	for i, a := range ix.Attrs {
		v, ok := byAttr[a]
		if !ok {
			return nil, fmt.Errorf("%s: index %q needs attribute %q", f.PublicName, ix.Name, a)
		}
		out[i] = v
	}
	return out, nil
}

// ParamsOf returns the item's values for the function's parameters, in
// declared order. Used to build replayable deltas.
func (f Func) ParamsOf(item ir.IRObject) []ir.IRValue {
	out := make([]ir.IRValue, len(f.Params))
	for i, p := range f.Params {
		v, ok := item[p]
		if !ok {
			v = ir.IRNull{}
		}
		out[i] = v
	}
	return out
}
