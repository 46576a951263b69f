package stream

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rqe/internal/ir"
)

// EventType is the discriminator of an Event.
type EventType string

const (
	TypeItem    EventType = "item"
	TypeDone    EventType = "done"
	TypeFail    EventType = "fail"
	TypeSchema  EventType = "schema"
	TypeRestart EventType = "restart"
	TypeDelta   EventType = "delta"
)

// Terminal reports whether no event may follow this one.
func (t EventType) Terminal() bool {
	return t == TypeDone || t == TypeFail
}

// SchemaInfo describes the replayable functions a listener stream offers.
// Funcs holds declared names such as "delete(b)".
type SchemaInfo struct {
	Name  string   `json:"name,omitempty"`
	Funcs []string `json:"funcs"`
}

// Event is one message on a Stream. Only the fields relevant to Type are set.
type Event struct {
	Type   EventType     `json:"t"`
	Item   ir.IRObject   `json:"item,omitempty"`
	Error  *ErrorDetails `json:"error,omitempty"`
	Schema *SchemaInfo   `json:"schema,omitempty"`
	Func   string        `json:"func,omitempty"`
	Params ir.IRArray    `json:"params,omitempty"`
}

// Item builds an item event.
func Item(item ir.IRObject) Event { return Event{Type: TypeItem, Item: item} }

// Done builds a done event.
func Done() Event { return Event{Type: TypeDone} }

// Fail builds a fail event.
func Fail(details *ErrorDetails) Event { return Event{Type: TypeFail, Error: details} }

// Restart builds a restart event.
func Restart() Event { return Event{Type: TypeRestart} }

// Schema builds a schema event.
func Schema(info SchemaInfo) Event { return Event{Type: TypeSchema, Schema: &info} }

// Delta builds a delta event for the declared function fn.
func Delta(fn string, params ...ir.IRValue) Event {
	return Event{Type: TypeDelta, Func: fn, Params: ir.IRArray(params)}
}

// ToIR converts the event to an IRObject for canonical serialization.
func (e Event) ToIR() ir.IRObject {
	obj := ir.IRObject{"t": ir.IRString(e.Type)}
	if e.Item != nil {
		obj["item"] = e.Item
	}
	if e.Error != nil {
		obj["error"] = e.Error.ToIR()
	}
	if e.Schema != nil {
		funcs := make(ir.IRArray, len(e.Schema.Funcs))
		for i, f := range e.Schema.Funcs {
			funcs[i] = ir.IRString(f)
		}
		schema := ir.IRObject{"funcs": funcs}
		if e.Schema.Name != "" {
			schema["name"] = ir.IRString(e.Schema.Name)
		}
		obj["schema"] = schema
	}
	if e.Func != "" {
		obj["func"] = ir.IRString(e.Func)
	}
	if e.Type == TypeDelta {
		params := e.Params
		if params == nil {
			params = ir.IRArray{}
		}
		obj["params"] = params
	}
	return obj
}

// MarshalJSON writes the event as canonical JSON.
func (e Event) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(e.ToIR())
}

// UnmarshalJSON reads an event written by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var obj ir.IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	evt, err := EventFromIR(obj)
	if err != nil {
		return err
	}
	*e = evt
	return nil
}

// EventFromIR is the inverse of Event.ToIR.
func EventFromIR(obj ir.IRObject) (Event, error) {
	t, ok := obj["t"].(ir.IRString)
	if !ok {
		return Event{}, fmt.Errorf("event: missing type")
	}
	evt := Event{Type: EventType(t)}
	switch evt.Type {
	case TypeItem, TypeDone, TypeFail, TypeSchema, TypeRestart, TypeDelta:
	default:
		return Event{}, fmt.Errorf("event: unknown type %q", t)
	}

	if item, ok := obj["item"].(ir.IRObject); ok {
		evt.Item = item
	}
	if errObj, ok := obj["error"].(ir.IRObject); ok {
		evt.Error = ErrorDetailsFromIR(errObj)
	}
	if schemaObj, ok := obj["schema"].(ir.IRObject); ok {
		info := &SchemaInfo{Funcs: []string{}}
		if name, ok := schemaObj["name"].(ir.IRString); ok {
			info.Name = string(name)
		}
		if funcs, ok := schemaObj["funcs"].(ir.IRArray); ok {
			for _, f := range funcs {
				if s, ok := f.(ir.IRString); ok {
					info.Funcs = append(info.Funcs, string(s))
				}
			}
		}
		evt.Schema = info
	}
	if fn, ok := obj["func"].(ir.IRString); ok {
		evt.Func = string(fn)
	}
	if params, ok := obj["params"].(ir.IRArray); ok {
		evt.Params = params
	}
	return evt, nil
}

// String renders the event compactly for logs and traces.
func (e Event) String() string {
	switch e.Type {
	case TypeItem:
		return "item " + ir.MustCanonical(e.Item)
	case TypeFail:
		if e.Error != nil {
			return "fail " + e.Error.Error()
		}
	case TypeSchema:
		if e.Schema != nil {
			return fmt.Sprintf("schema %v", e.Schema.Funcs)
		}
	case TypeDelta:
		return "delta " + e.Func + " " + ir.MustCanonical(e.Params)
	}
	return string(e.Type)
}
