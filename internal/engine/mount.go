package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/table"
)

// MountTable exposes a table's get, list and listAll functions as
// handlers. For a table "user" with get(id) the handler is
//
//	user $id -> name email
//
// so the query "user id=1 name" returns the name of user 1. A listAll
// handler declares every attribute as an output and so also matches keyed
// queries; keyed functions are mounted first so they win that tie.
func (g *Graph) MountTable(t *table.Table) error {
	var attrs []string
	for _, a := range t.Schema().Attrs() {
		attrs = append(attrs, a.Name)
	}

	funcs := t.Funcs()
	slices.SortStableFunc(funcs, func(a, b schema.Func) int {
		return len(b.Params) - len(a.Params)
	})

	var handlers []*Handler
	for _, f := range funcs {
		var run HandlerFunc
		switch f.Kind {
		case schema.FuncGet:
			run = func(task *Task) (any, error) {
				item, err := t.Get(f.PublicName, taskArgs(task, f.Params)...)
				if err != nil || item == nil {
					return nil, err
				}
				return item, nil
			}
		case schema.FuncList:
			run = func(task *Task) (any, error) {
				return t.List(f.PublicName, taskArgs(task, f.Params)...)
			}
		case schema.FuncListAll:
			run = func(*Task) (any, error) {
				return t.ListAll()
			}
		default:
			continue
		}

		h, err := NewHandler(tableDecl(t.Name(), f.Params, attrs), run)
		if err != nil {
			return fmt.Errorf("mount table %q: %s: %w", t.Name(), f.PublicName, err)
		}
		handlers = append(handlers, h)
	}
	g.Mount(handlers...)
	return nil
}

func tableDecl(name string, params, attrs []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range params {
		b.WriteString(" $")
		b.WriteString(p)
	}
	var outputs []string
	for _, a := range attrs {
		if !slices.Contains(params, a) && a != name {
			outputs = append(outputs, a)
		}
	}
	if len(outputs) > 0 {
		b.WriteString(" -> ")
		b.WriteString(strings.Join(outputs, " "))
	}
	return b.String()
}

func taskArgs(task *Task, params []string) []ir.IRValue {
	args := make([]ir.IRValue, len(params))
	for i, p := range params {
		args[i] = task.Get(p)
	}
	return args
}
