package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rqe/internal/ir"
)

// yamlFile is the layout of a YAML declaration file:
//
//	tables:
//	  - name: users
//	    attrs: [id(auto), name]
//	    funcs: [get(id), listAll]
//	    initial:
//	      - name: ada
type yamlFile struct {
	Tables []yaml.Node `yaml:"tables"`
}

type yamlTable struct {
	Name    string           `yaml:"name"`
	Attrs   []string         `yaml:"attrs"`
	Funcs   []string         `yaml:"funcs"`
	Initial []map[string]any `yaml:"initial"`
}

// ParseYAML reads table declarations from YAML. Unknown fields are
// rejected so typos do not silently drop declarations.
func ParseYAML(data []byte, source string) ([]TableSpec, error) {
	var file yamlFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CompileError{Field: "tables", Message: fmt.Sprintf("%s: empty file", source)}
		}
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", source, err)
	}

	specs := make([]TableSpec, 0, len(file.Tables))
	for i := range file.Tables {
		node := &file.Tables[i]
		var t yamlTable
		if err := decodeStrict(node, &t); err != nil {
			return nil, fmt.Errorf("%s:%d: tables[%d]: %w", source, node.Line, i, err)
		}
		if t.Name == "" {
			return nil, &CompileError{Field: "name", Message: fmt.Sprintf("%s:%d: tables[%d]: name is required", source, node.Line, i)}
		}
		if len(t.Attrs) == 0 {
			return nil, &CompileError{Field: "attrs", Message: fmt.Sprintf("%s:%d: table %q: at least one attribute is required", source, node.Line, t.Name)}
		}

		spec := TableSpec{Name: t.Name, Attrs: t.Attrs, Funcs: t.Funcs, Source: source, Line: node.Line}
		for j, raw := range t.Initial {
			v, err := ir.FromGo(raw)
			if err != nil {
				return nil, &CompileError{Field: "initial", Message: fmt.Sprintf("%s:%d: table %q: initial[%d]: %v", source, node.Line, t.Name, j, err)}
			}
			spec.Initial = append(spec.Initial, v.(ir.IRObject))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// decodeStrict decodes a node rejecting unknown fields. yaml.Node.Decode
// does not honor KnownFields, so the node is re-encoded first.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}
