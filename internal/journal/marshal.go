package journal

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
)

// CorruptEventError reports a stored event whose payload no longer matches
// its hash.
type CorruptEventError struct {
	Seq      int64
	Expected string
	Actual   string
}

func (e *CorruptEventError) Error() string {
	return fmt.Sprintf("journal: event seq %d is corrupt: hash %s, stored %s", e.Seq, e.Actual, e.Expected)
}

// marshalEvent converts an event to canonical JSON TEXT plus its content
// hash.
func marshalEvent(evt stream.Event) (payload, hash string, err error) {
	obj := evt.ToIR()
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal event: %w", err)
	}
	hash, err = ir.ContentHash(obj)
	if err != nil {
		return "", "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), hash, nil
}

// unmarshalEvent parses a stored payload and checks it against its hash.
// Uses ir.IRObject.UnmarshalJSON so large integers keep their precision.
func unmarshalEvent(seq int64, payload, hash string) (stream.Event, error) {
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return stream.Event{}, fmt.Errorf("unmarshal event %d: %w", seq, err)
	}
	actual, err := ir.ContentHash(obj)
	if err != nil {
		return stream.Event{}, fmt.Errorf("unmarshal event %d: %w", seq, err)
	}
	if actual != hash {
		return stream.Event{}, &CorruptEventError{Seq: seq, Expected: hash, Actual: actual}
	}
	evt, err := stream.EventFromIR(obj)
	if err != nil {
		return stream.Event{}, fmt.Errorf("unmarshal event %d: %w", seq, err)
	}
	return evt, nil
}

// declIR describes a declaration for storage and hashing. Initialize hooks
// are code and are not recorded.
func declIR(d schema.Decl) ir.IRObject {
	strs := func(in []string) ir.IRArray {
		out := make(ir.IRArray, len(in))
		for i, s := range in {
			out[i] = ir.IRString(s)
		}
		return out
	}
	return ir.IRObject{
		"name":  ir.IRString(d.Name),
		"attrs": strs(d.Attrs),
		"funcs": strs(d.Funcs),
	}
}

// declFromIR is the inverse of declIR.
func declFromIR(obj ir.IRObject) schema.Decl {
	strs := func(v ir.IRValue) []string {
		arr, _ := v.(ir.IRArray)
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(ir.IRString); ok {
				out = append(out, string(s))
			}
		}
		return out
	}
	name, _ := obj["name"].(ir.IRString)
	return schema.Decl{Name: string(name), Attrs: strs(obj["attrs"]), Funcs: strs(obj["funcs"])}
}
