package query

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/rqe/internal/ir"
)

// TagValue is the value of a tag. Only StringValue, IntValue, BoolValue,
// *Query and Star implement it.
type TagValue interface {
	tagValue()
}

// StringValue is a string literal.
type StringValue string

func (StringValue) tagValue() {}

// IntValue is an integer literal.
type IntValue int64

func (IntValue) tagValue() {}

// BoolValue is a boolean literal. The parser only produces it for flags.
type BoolValue bool

func (BoolValue) tagValue() {}

// Star is the wildcard value in attr=*.
type Star struct{}

func (Star) tagValue() {}

func (*Query) tagValue() {}

// QueryTag is one element of a Query.
type QueryTag struct {
	// Attr is empty for a bare nested group.
	Attr string

	// Value is nil for a bare attribute or a parameter.
	Value TagValue

	// Optional marks attr? tags.
	Optional bool

	// IsParameter marks $attr and attr=$param tags. The value is filled
	// from the caller's parameter map at execution time.
	IsParameter bool
	ParamName   string

	// IsFlag marks --flag tags.
	IsFlag bool
}

// HasValue reports whether the tag carries any value.
func (t QueryTag) HasValue() bool { return t.Value != nil }

// Literal returns the tag's literal as an IR value. Nested queries, stars
// and parameters are not literals.
func (t QueryTag) Literal() (ir.IRValue, bool) {
	switch v := t.Value.(type) {
	case StringValue:
		return ir.IRString(v), true
	case IntValue:
		return ir.IRInt(v), true
	case BoolValue:
		return ir.IRBool(v), true
	}
	return nil, false
}

// Nested returns the nested query, if any.
func (t QueryTag) Nested() (*Query, bool) {
	q, ok := t.Value.(*Query)
	return q, ok && q != nil
}

// IsStar reports whether the tag is attr=*.
func (t QueryTag) IsStar() bool {
	_, ok := t.Value.(Star)
	return ok
}

// Query is an ordered list of tags. Queries are built by the parser or by
// New and are not modified afterwards.
type Query struct {
	Tags []QueryTag
}

// New builds a query from tags.
func New(tags ...QueryTag) *Query {
	return &Query{Tags: tags}
}

// Len returns the number of tags.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Tags)
}

// Get returns the first tag with the given attribute.
func (q *Query) Get(attr string) (QueryTag, bool) {
	if q == nil {
		return QueryTag{}, false
	}
	for _, t := range q.Tags {
		if t.Attr == attr {
			return t, true
		}
	}
	return QueryTag{}, false
}

// Has reports whether a tag with the attribute exists.
func (q *Query) Has(attr string) bool {
	_, ok := q.Get(attr)
	return ok
}

// Attrs returns the attribute names in order, skipping bare groups.
func (q *Query) Attrs() []string {
	if q == nil {
		return nil
	}
	out := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		if t.Attr != "" {
			out = append(out, t.Attr)
		}
	}
	return out
}

// String prints the query in canonical form.
func (q *Query) String() string {
	if q == nil {
		return ""
	}
	parts := make([]string, len(q.Tags))
	for i, t := range q.Tags {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// String prints the tag in canonical form.
func (t QueryTag) String() string {
	if t.IsFlag {
		return "--" + t.Attr
	}

	var b strings.Builder
	if t.IsParameter && t.Value == nil && t.ParamName == t.Attr {
		b.WriteString("$")
		b.WriteString(t.Attr)
		if t.Optional {
			b.WriteString("?")
		}
		return b.String()
	}

	b.WriteString(t.Attr)
	if t.Optional {
		b.WriteString("?")
	}

	switch {
	case t.IsParameter:
		b.WriteString("=$")
		b.WriteString(t.ParamName)
	case t.Value != nil:
		switch v := t.Value.(type) {
		case *Query:
			b.WriteString("(")
			b.WriteString(v.String())
			b.WriteString(")")
		case Star:
			b.WriteString("=*")
		case IntValue:
			b.WriteString("=")
			b.WriteString(strconv.FormatInt(int64(v), 10))
		case BoolValue:
			b.WriteString("=")
			b.WriteString(strconv.FormatBool(bool(v)))
		case StringValue:
			b.WriteString("=")
			b.WriteString(QuoteIfNeeded(string(v)))
		}
	}
	return b.String()
}

// QuoteIfNeeded returns s unchanged when it lexes back as a single
// identifier that is not an integer, and a quoted string otherwise.
func QuoteIfNeeded(s string) string {
	if !needsQuote(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(s string) bool {
	if s == "" || isIntLiteral(s) {
		return true
	}
	if strings.HasPrefix(s, "--") || strings.Contains(s, "->") {
		return true
	}
	for _, r := range s {
		if !IsIdentChar(r) {
			return true
		}
	}
	return !utf8.ValidString(s)
}

// isIntLiteral reports whether s is an integer in canonical form: an
// optionally negative run of digits with no leading zeros, no "-0", that
// fits in an int64. Other digit runs such as 007 stay strings, so every
// literal prints back exactly as written.
func isIntLiteral(s string) bool {
	_, ok := parseIntLiteral(s)
	return ok
}

func parseIntLiteral(s string) (int64, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}
