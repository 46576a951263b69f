package schema

import (
	"slices"

	"github.com/roach88/rqe/internal/ir"
)

// Schema is a compiled table declaration. It is never modified after
// Compile returns it; accessors hand out copies of slices.
type Schema struct {
	name                 string
	decl                 Decl
	attrs                []Attr
	funcs                []Func
	indexes              []IndexSchema
	primaryUniqueIndex   string
	primaryUniqueAttr    string
	defaultIndex         string
	constraints          []Constraint
	supportsListening    bool
	supportsUpdateEvents bool
	setup                []SetupStep
	preInsert            []PreInsertStep
}

func (s *Schema) Name() string { return s.name }
func (s *Schema) Attrs() []Attr { return slices.Clone(s.attrs) }
func (s *Schema) Funcs() []Func { return slices.Clone(s.funcs) }
func (s *Schema) Indexes() []IndexSchema { return slices.Clone(s.indexes) }

// Decl returns the declaration the schema was compiled from.
func (s *Schema) Decl() Decl {
	d := s.decl
	d.Attrs = slices.Clone(d.Attrs)
	d.Funcs = slices.Clone(d.Funcs)
	return d
}

// PrimaryUniqueIndex returns the name of the first single-attribute map
// index, or "" when there is none.
func (s *Schema) PrimaryUniqueIndex() string { return s.primaryUniqueIndex }

// PrimaryUniqueAttr returns the attribute of the primary unique index.
func (s *Schema) PrimaryUniqueAttr() string { return s.primaryUniqueAttr }

// HasPrimaryUniqueIndex reports whether items have a unique identity.
func (s *Schema) HasPrimaryUniqueIndex() bool { return s.primaryUniqueIndex != "" }

// DefaultIndex is the primary unique index, else the first index.
func (s *Schema) DefaultIndex() string { return s.defaultIndex }

func (s *Schema) Constraints() []Constraint { return slices.Clone(s.constraints) }
func (s *Schema) SupportsListening() bool { return s.supportsListening }
func (s *Schema) SupportsUpdateEvents() bool { return s.supportsUpdateEvents }
func (s *Schema) Setup() []SetupStep { return slices.Clone(s.setup) }
func (s *Schema) PreInsert() []PreInsertStep { return slices.Clone(s.preInsert) }
func (s *Schema) Initialize() func(Inserter) error { return s.decl.Initialize }

// Func finds a function by public name.
func (s *Schema) Func(publicName string) (Func, bool) {
	for _, f := range s.funcs {
		if f.PublicName == publicName {
			return f, true
		}
	}
	return Func{}, false
}

// FuncByDeclaredName finds a function by its declaration text, e.g. "delete(b)".
func (s *Schema) FuncByDeclaredName(declared string) (Func, bool) {
	for _, f := range s.funcs {
		if f.DeclaredName == declared {
			return f, true
		}
	}
	return Func{}, false
}

// FuncsOfKind returns the functions of one kind, in declaration order.
func (s *Schema) FuncsOfKind(kind FuncKind) []Func {
	var out []Func
	for _, f := range s.funcs {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Supports reports whether a function with the public or declared name exists.
func (s *Schema) Supports(name string) bool {
	if _, ok := s.Func(name); ok {
		return true
	}
	_, ok := s.FuncByDeclaredName(name)
	return ok
}

// Index finds an index by name.
func (s *Schema) Index(name string) (IndexSchema, bool) {
	for _, ix := range s.indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return IndexSchema{}, false
}

// DeleteFuncsOn returns the attribute delete functions that use the index.
func (s *Schema) DeleteFuncsOn(indexName string) []Func {
	var out []Func
	for _, f := range s.FuncsOfKind(FuncDelete) {
		if f.IndexName == indexName {
			out = append(out, f)
		}
	}
	return out
}

// AutoAttrs returns the names of auto-increment attributes.
func (s *Schema) AutoAttrs() []string {
	var out []string
	for _, a := range s.attrs {
		if a.IsAuto {
			out = append(out, a.Name)
		}
	}
	return out
}

// Describe renders the schema as an IR object for hashing and display.
func (s *Schema) Describe() ir.IRObject {
	attrs := make(ir.IRArray, len(s.attrs))
	for i, a := range s.attrs {
		obj := ir.IRObject{"name": ir.IRString(a.Name)}
		if a.IsAuto {
			obj["auto"] = ir.IRBool(true)
		}
		if a.Unique {
			obj["unique"] = ir.IRString(a.Policy)
		}
		attrs[i] = obj
	}

	indexes := make(ir.IRArray, len(s.indexes))
	for i, ix := range s.indexes {
		ixAttrs := make(ir.IRArray, len(ix.Attrs))
		for j, a := range ix.Attrs {
			ixAttrs[j] = ir.IRString(a)
		}
		indexes[i] = ir.IRObject{
			"name":  ir.IRString(ix.Name),
			"type":  ir.IRString(ix.Type),
			"attrs": ixAttrs,
		}
	}

	funcs := make(ir.IRArray, len(s.funcs))
	for i, f := range s.funcs {
		obj := ir.IRObject{
			"declared": ir.IRString(f.DeclaredName),
			"public":   ir.IRString(f.PublicName),
		}
		if f.IndexName != "" {
			obj["index"] = ir.IRString(f.IndexName)
		}
		funcs[i] = obj
	}

	desc := ir.IRObject{
		"name":         ir.IRString(s.name),
		"attrs":        attrs,
		"indexes":      indexes,
		"funcs":        funcs,
		"defaultIndex": ir.IRString(s.defaultIndex),
		"listening":    ir.IRBool(s.supportsListening),
		"updateEvents": ir.IRBool(s.supportsUpdateEvents),
	}
	if s.primaryUniqueIndex != "" {
		desc["primaryUniqueIndex"] = ir.IRString(s.primaryUniqueIndex)
	}
	return desc
}
