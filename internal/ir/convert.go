package ir

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// FromGo converts a plain Go value into an IRValue.
//
// nil becomes IRNull. Integral floats (as produced by YAML and JSON
// decoders) become IRInt; any other float is rejected.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return IRInt(val), nil
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	case map[any]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string object key %v", k)
			}
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", ks, err)
			}
			obj[ks] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromGo is like FromGo but panics on error.
func MustFromGo(v any) IRValue {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

func fromFloat(f float64) (IRValue, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("floats are not allowed: %v", f)
	}
	return IRInt(int64(f)), nil
}

// ToGo converts an IRValue back into plain Go values.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	}
	return nil
}

// SameObject reports whether a and b are the same item by reference.
// Two distinct objects with equal content are not the same.
func SameObject(a, b IRObject) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

// Equal reports deep structural equality of two values.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString, IRInt, IRBool:
		return a == b
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// KeyString renders a value the way it appears inside a composite index key
// and in error messages: strings raw, scalars in their literal form, arrays
// and objects as canonical JSON.
func KeyString(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return string(val)
	case IRInt, IRBool:
		return MustCanonical(val)
	default:
		b, err := MarshalCanonical(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// Describe renders a value for log and error messages.
func Describe(v IRValue) string {
	if s, ok := v.(IRString); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return KeyString(v)
}

// DescribeObject renders the listed attributes of obj, in order.
func DescribeObject(obj IRObject, attrs []string) string {
	if len(attrs) == 0 {
		attrs = obj.SortedKeys()
	}
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		v, ok := obj[a]
		if !ok {
			v = IRNull{}
		}
		parts = append(parts, a+"="+Describe(v))
	}
	return strings.Join(parts, " ")
}

// Identity returns a value that is equal for two objects exactly when
// SameObject reports true. Use it to key maps by item reference.
func Identity(obj IRObject) uintptr {
	if obj == nil {
		return 0
	}
	return reflect.ValueOf(obj).Pointer()
}
