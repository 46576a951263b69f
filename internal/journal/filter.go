package journal

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// Predicate selects stored events. Predicates compile to parameterized
// SQL over the events table; values never appear in the SQL text.
type Predicate interface {
	compile() (string, []any, error)
}

// ItemEquals matches events whose item has Attr equal to Value. Only item
// events carry an item, so deltas never match.
type ItemEquals struct {
	Attr  string
	Value ir.IRValue
}

// TypeIs matches events of any of the given types.
type TypeIs struct {
	Types []stream.EventType
}

// RecordingIs matches the events of one recording.
type RecordingIs struct {
	ID string
}

// And matches events every predicate matches. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (p ItemEquals) compile() (string, []any, error) {
	path := fmt.Sprintf("$.item.%q", p.Attr)
	switch v := p.Value.(type) {
	case ir.IRNull, nil:
		return "json_type(payload, ?) = 'null'", []any{path}, nil
	case ir.IRString:
		return "json_extract(payload, ?) = ?", []any{path, string(v)}, nil
	case ir.IRInt:
		return "json_extract(payload, ?) = ?", []any{path, int64(v)}, nil
	case ir.IRBool:
		// json_extract yields 1 or 0 for JSON booleans
		n := int64(0)
		if v {
			n = 1
		}
		return "json_type(payload, ?) IN ('true', 'false') AND json_extract(payload, ?) = ?", []any{path, path, n}, nil
	default:
		return "", nil, fmt.Errorf("item filter on %q: unsupported value %s", p.Attr, ir.Describe(p.Value))
	}
}

func (p TypeIs) compile() (string, []any, error) {
	if len(p.Types) == 0 {
		return "1 = 1", nil, nil
	}
	marks := make([]string, len(p.Types))
	args := make([]any, len(p.Types))
	for i, t := range p.Types {
		marks[i] = "?"
		args[i] = string(t)
	}
	return "type IN (" + strings.Join(marks, ", ") + ")", args, nil
}

func (p RecordingIs) compile() (string, []any, error) {
	return "recording_id = ?", []any{p.ID}, nil
}

func (p And) compile() (string, []any, error) {
	if len(p.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(p.Predicates))
	var args []any
	for _, sub := range p.Predicates {
		if sub == nil {
			continue
		}
		sql, subArgs, err := sub.compile()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, subArgs...)
	}
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), args, nil
}

// compileFind builds the SELECT for Find. Every statement orders by seq
// with id as tiebreaker.
func compileFind(tableName string, p Predicate) (string, []any, error) {
	where := "table_name = ?"
	args := []any{tableName}
	if p != nil {
		sql, predArgs, err := p.compile()
		if err != nil {
			return "", nil, err
		}
		where += " AND (" + sql + ")"
		args = append(args, predArgs...)
	}
	return "SELECT seq, table_name, recording_id, payload, payload_hash FROM events WHERE " +
		where + " ORDER BY seq ASC, id ASC", args, nil
}

// Find returns the events of tableName matching p, ordered by seq. A nil
// predicate matches every event.
func (j *Journal) Find(ctx context.Context, tableName string, p Predicate) ([]Record, error) {
	sql, args, err := compileFind(tableName, p)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	rows, err := j.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	return scanRecords(rows)
}

// ItemWhere builds an item filter from a query of literal tags, e.g.
// "role=dev active=true".
func ItemWhere(q *query.Query) (Predicate, error) {
	and := And{}
	for _, tag := range q.Tags {
		v, ok := tag.Literal()
		if !ok {
			return nil, fmt.Errorf("filter tag %q must be attr=literal", tag.String())
		}
		and.Predicates = append(and.Predicates, ItemEquals{Attr: tag.Attr, Value: v})
	}
	return and, nil
}
