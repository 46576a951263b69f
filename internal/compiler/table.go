package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// TableSpec is a table declaration read from a CUE or YAML file.
type TableSpec struct {
	Name  string
	Attrs []string
	Funcs []string

	// Initial items are inserted when a table is created from the spec.
	Initial []ir.IRObject

	// Source is the file the spec came from, if known. CUE specs carry a
	// position; YAML specs a line.
	Source string
	Pos    token.Pos
	Line   int
}

// Decl returns the schema declaration. Its Initialize hook inserts a copy
// of every initial item.
func (s TableSpec) Decl() schema.Decl {
	d := schema.Decl{
		Name:  s.Name,
		Attrs: slices.Clone(s.Attrs),
		Funcs: slices.Clone(s.Funcs),
	}
	if len(s.Initial) > 0 {
		initial := s.Initial
		d.Initialize = func(t schema.Inserter) error {
			for i, item := range initial {
				if _, err := t.Insert(item.Clone()); err != nil {
					return fmt.Errorf("initial[%d]: %w", i, err)
				}
			}
			return nil
		}
	}
	return d
}

// CompileTable parses a CUE value into a TableSpec.
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: users: { attrs: ["id(auto)", "name"], funcs: ["get(id)"] }`)
//	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.users")))
func CompileTable(v cue.Value) (*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TableSpec{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Name = name
	}

	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if !attrsVal.Exists() {
		return nil, &CompileError{
			Field:   "attrs",
			Message: "attrs is required",
			Pos:     v.Pos(),
		}
	}
	attrs, err := stringList(attrsVal)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, &CompileError{
			Field:   "attrs",
			Message: "at least one attribute is required",
			Pos:     attrsVal.Pos(),
		}
	}
	spec.Attrs = attrs

	if funcsVal := v.LookupPath(cue.ParsePath("funcs")); funcsVal.Exists() {
		spec.Funcs, err = stringList(funcsVal)
		if err != nil {
			return nil, err
		}
	}

	if initialVal := v.LookupPath(cue.ParsePath("initial")); initialVal.Exists() {
		spec.Initial, err = parseInitial(initialVal)
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// CompileTables compiles every field of the top-level "table" struct.
// Errors are collected per table; tables that compile are returned even
// when others fail.
func CompileTables(v cue.Value, source string) ([]TableSpec, []error) {
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, nil
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []TableSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileTable(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("table.%s: %w", iter.Label(), err))
			continue
		}
		spec.Source = source
		specs = append(specs, *spec)
	}
	return specs, errs
}

// stringList reads a CUE list of strings.
func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseInitial reads the list of seed items.
func parseInitial(v cue.Value) ([]ir.IRObject, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var items []ir.IRObject
	for iter.Next() {
		val, err := toIR(iter.Value())
		if err != nil {
			return nil, err
		}
		obj, ok := val.(ir.IRObject)
		if !ok {
			return nil, &CompileError{
				Field:   "initial",
				Message: fmt.Sprintf("initial items must be structs, got %s", ir.Describe(val)),
				Pos:     iter.Value().Pos(),
			}
		}
		items = append(items, obj)
	}
	return items, nil
}

// toIR converts a concrete CUE value to an IR value.
// Floats are forbidden; item values are strings, ints, bools, lists,
// structs or null.
func toIR(v cue.Value) (ir.IRValue, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			field, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float values are not supported - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
