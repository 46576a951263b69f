package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/query"
)

// TaskAttr is the synthetic handler attribute that receives the *Task.
const TaskAttr = "task"

// ValueType is the expected type of a handler input.
type ValueType string

const (
	TypeAny     ValueType = ""
	TypeInteger ValueType = "integer"
)

// HandlerTag is one declared attribute of a handler.
type HandlerTag struct {
	Attr string

	// IsRequired tags must be matched by the query.
	IsRequired bool

	// RequiresValue tags need a literal or a parameter in the query.
	RequiresValue bool

	// IsParameter marks $attr declarations.
	IsParameter bool

	// IsOutput marks tags declared after ->.
	IsOutput bool

	// IsPositional tags can be matched by the query tag at the same index
	// whatever its attribute; that tag's text becomes the value.
	IsPositional bool

	ExpectedType ValueType
}

// HandlerFunc serves a matched query. The result may be nil, an
// ir.IRObject, a []ir.IRObject, an ir.IRArray of objects, an
// iter.Seq[ir.IRObject] or a *stream.Stream.
type HandlerFunc func(task *Task) (any, error)

// Handler is a parsed handler declaration bound to its callback.
// Handlers are immutable once created.
type Handler struct {
	decl   string
	tags   []HandlerTag
	byAttr map[string]int
	run    HandlerFunc
}

// NewHandler parses a declaration such as "user $id -> name email".
//
// Input tags:
//
//	attr          required attribute
//	attr?         optional attribute
//	$attr         required attribute that needs a value
//	attr(mods)    modifiers: required, optional, integer, positional
//	task          receives the *Task
//
// Tags after -> are outputs: the handler produces them but never needs
// them from the query.
func NewHandler(decl string, run HandlerFunc) (*Handler, error) {
	if run == nil {
		return nil, &DeclError{Decl: decl, Message: "handler callback is nil"}
	}
	inputs, outputs, err := query.ParseSignature(decl)
	if err != nil {
		return nil, &DeclError{Decl: decl, Message: err.Error()}
	}

	h := &Handler{decl: decl, byAttr: make(map[string]int), run: run}
	for _, qt := range inputs.Tags {
		tag, err := inputTag(decl, qt)
		if err != nil {
			return nil, err
		}
		if err := h.add(tag); err != nil {
			return nil, err
		}
	}
	for _, qt := range outputs.Tags {
		if qt.Attr == "" || qt.HasValue() || qt.IsFlag {
			return nil, &DeclError{Decl: decl, Message: fmt.Sprintf("invalid output %q", qt.String())}
		}
		if err := h.add(HandlerTag{Attr: qt.Attr, IsOutput: true}); err != nil {
			return nil, err
		}
	}
	if len(h.tags) == 0 {
		return nil, &DeclError{Decl: decl, Message: "empty declaration"}
	}
	return h, nil
}

// MustHandler is like NewHandler but panics on error.
func MustHandler(decl string, run HandlerFunc) *Handler {
	h, err := NewHandler(decl, run)
	if err != nil {
		panic(err)
	}
	return h
}

func inputTag(decl string, qt query.QueryTag) (HandlerTag, error) {
	if qt.Attr == "" || qt.IsFlag || qt.IsStar() {
		return HandlerTag{}, &DeclError{Decl: decl, Message: fmt.Sprintf("invalid input %q", qt.String())}
	}
	tag := HandlerTag{
		Attr:          qt.Attr,
		IsRequired:    !qt.Optional,
		IsParameter:   qt.IsParameter,
		RequiresValue: qt.IsParameter,
	}
	if qt.Attr == TaskAttr {
		tag.IsRequired = false
		return tag, nil
	}
	if !qt.HasValue() {
		return tag, nil
	}

	mods, ok := qt.Nested()
	if !ok {
		return HandlerTag{}, &DeclError{Decl: decl, Message: fmt.Sprintf("%s: expected modifiers in parentheses", qt.Attr)}
	}
	for _, mod := range mods.Tags {
		switch mod.Attr {
		case "required":
			tag.IsRequired = true
		case "optional":
			tag.IsRequired = false
		case "integer":
			tag.ExpectedType = TypeInteger
			tag.RequiresValue = true
		case "positional":
			tag.IsPositional = true
		default:
			return HandlerTag{}, &DeclError{Decl: decl, Message: fmt.Sprintf("%s: unknown modifier %q", qt.Attr, mod.Attr)}
		}
	}
	return tag, nil
}

func (h *Handler) add(tag HandlerTag) error {
	if _, dup := h.byAttr[tag.Attr]; dup {
		return &DeclError{Decl: h.decl, Message: fmt.Sprintf("duplicate attribute %q", tag.Attr)}
	}
	h.byAttr[tag.Attr] = len(h.tags)
	h.tags = append(h.tags, tag)
	return nil
}

// Decl returns the declaration text.
func (h *Handler) Decl() string { return h.decl }

// Tags returns the declared tags in order.
func (h *Handler) Tags() []HandlerTag { return slices.Clone(h.tags) }

// Tag finds a tag by attribute.
func (h *Handler) Tag(attr string) (HandlerTag, bool) {
	i, ok := h.byAttr[attr]
	if !ok {
		return HandlerTag{}, false
	}
	return h.tags[i], true
}

// TagAt returns the tag at position i.
func (h *Handler) TagAt(i int) (HandlerTag, bool) {
	if i < 0 || i >= len(h.tags) {
		return HandlerTag{}, false
	}
	return h.tags[i], true
}

// Attrs returns the declared attribute names, sorted.
func (h *Handler) Attrs() []string {
	return slices.Sorted(maps.Keys(h.byAttr))
}

// String returns the declaration.
func (h *Handler) String() string {
	return strings.TrimSpace(h.decl)
}
