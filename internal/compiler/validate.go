package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidTableName  = "E101" // name missing or not an identifier
	ErrNoAttrs           = "E102" // at least one attribute required
	ErrInvalidAttrDecl   = "E103" // attribute declaration does not parse
	ErrInvalidFuncDecl   = "E104" // function declaration does not parse
	ErrDuplicateName     = "E105" // duplicate attribute, function or table
	ErrUnknownInitialKey = "E106" // initial item uses an undeclared attribute
	ErrSchemaCompile     = "E107" // declaration rejected by the schema compiler
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Table   string `json:"table,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks one table spec. Returns all errors found (does not
// fail-fast). The schema compiler only runs once the declarations parse.
func Validate(spec *TableSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Table:   spec.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    specLine(spec),
		})
	}

	if !tableNamePattern.MatchString(spec.Name) {
		add("name", ErrInvalidTableName, "invalid table name %q", spec.Name)
	}
	if len(spec.Attrs) == 0 {
		add("attrs", ErrNoAttrs, "at least one attribute is required")
	}

	attrNames := make(map[string]bool)
	for i, decl := range spec.Attrs {
		q, err := query.Parse(decl)
		if err != nil || q.Len() != 1 || q.Tags[0].Attr == "" {
			add(fmt.Sprintf("attrs[%d]", i), ErrInvalidAttrDecl, "invalid attribute declaration %q", decl)
			continue
		}
		name := q.Tags[0].Attr
		if attrNames[name] {
			add(fmt.Sprintf("attrs[%d]", i), ErrDuplicateName, "duplicate attribute: %q", name)
		}
		attrNames[name] = true
	}

	funcDecls := make(map[string]bool)
	for i, decl := range spec.Funcs {
		if _, err := query.Parse(decl); err != nil {
			add(fmt.Sprintf("funcs[%d]", i), ErrInvalidFuncDecl, "invalid function declaration %q: %v", decl, err)
			continue
		}
		if funcDecls[decl] {
			add(fmt.Sprintf("funcs[%d]", i), ErrDuplicateName, "duplicate function: %q", decl)
		}
		funcDecls[decl] = true
	}

	for i, item := range spec.Initial {
		for _, key := range item.SortedKeys() {
			if !attrNames[key] {
				add(fmt.Sprintf("initial[%d].%s", i, key), ErrUnknownInitialKey, "attribute %q is not declared", key)
			}
		}
	}

	if len(errs) == 0 {
		if _, err := schema.Compile(spec.Decl()); err != nil {
			add("decl", ErrSchemaCompile, "%v", err)
		}
	}
	return errs
}

// ValidateAll validates every spec and reports table names declared more
// than once.
func ValidateAll(specs []TableSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]string)
	for i := range specs {
		spec := &specs[i]
		if prev, dup := seen[spec.Name]; dup {
			errs = append(errs, ValidationError{
				Table:   spec.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate table name: %q (also in %s)", spec.Name, prev),
				Code:    ErrDuplicateName,
				Line:    specLine(spec),
			})
		}
		seen[spec.Name] = spec.Source
		errs = append(errs, Validate(spec)...)
	}
	return errs
}

// Registry validates the specs and compiles them into a schema registry.
func Registry(specs []TableSpec) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for i := range specs {
		if err := reg.Register(specs[i].Decl()); err != nil {
			return nil, err
		}
	}
	if err := reg.Init(); err != nil {
		return nil, err
	}
	return reg, nil
}

func specLine(spec *TableSpec) int {
	if spec.Line > 0 {
		return spec.Line
	}
	if spec.Pos.IsValid() {
		return spec.Pos.Line()
	}
	return 0
}
