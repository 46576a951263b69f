package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rqe/internal/query"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	File      string // parse every query in a file
	Signature bool   // parse "inputs -> outputs"
}

// TagNode is one parsed tag, with nested tags for a subquery.
type TagNode struct {
	Attr     string    `json:"attr,omitempty"`
	Value    any       `json:"value,omitempty"`
	Param    string    `json:"param,omitempty"`
	Optional bool      `json:"optional,omitempty"`
	Flag     bool      `json:"flag,omitempty"`
	Star     bool      `json:"star,omitempty"`
	Nested   []TagNode `json:"nested,omitempty"`
}

// ParsedQuery is one query with its canonical text.
type ParsedQuery struct {
	Canonical string    `json:"canonical"`
	Tags      []TagNode `json:"tags"`
	Outputs   []TagNode `json:"outputs,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [query]",
		Short: "Parse a query and print its tag tree",
		Long: `Parse a query in the tag grammar and print the resulting tags.

Examples:
  rqe parse 'users id=1 name friends(name)'
  rqe parse --signature 'users $id -> name role'
  rqe parse --file queries.txt --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "parse every query in a file")
	cmd.Flags().BoolVar(&opts.Signature, "signature", false, `parse "inputs -> outputs"`)

	return cmd
}

func runParse(opts *ParseOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var parsed []ParsedQuery
	switch {
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return outputParseError(formatter, ErrCodeNotFound, fmt.Sprintf("reading %s: %v", opts.File, err))
		}
		queries, err := query.ParseFile(string(data))
		if err != nil {
			return outputParseError(formatter, parseErrorCode(err), err.Error())
		}
		for _, q := range queries {
			parsed = append(parsed, ParsedQuery{Canonical: q.String(), Tags: tagTree(q)})
		}
	case len(args) == 1 && opts.Signature:
		inputs, outputs, err := query.ParseSignature(args[0])
		if err != nil {
			return outputParseError(formatter, parseErrorCode(err), err.Error())
		}
		parsed = append(parsed, ParsedQuery{
			Canonical: inputs.String() + " -> " + outputs.String(),
			Tags:      tagTree(inputs),
			Outputs:   tagTree(outputs),
		})
	case len(args) == 1:
		q, err := query.Parse(args[0])
		if err != nil {
			return outputParseError(formatter, parseErrorCode(err), err.Error())
		}
		parsed = append(parsed, ParsedQuery{Canonical: q.String(), Tags: tagTree(q)})
	default:
		return NewExitError(ExitCommandError, "a query argument or --file is required")
	}

	if formatter.Format == "json" {
		return formatter.Success(parsed)
	}

	w := formatter.Writer
	for i, p := range parsed {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, p.Canonical)
		printTags(w, p.Tags, 1)
		if p.Outputs != nil {
			fmt.Fprintln(w, "  ->")
			printTags(w, p.Outputs, 1)
		}
	}
	return nil
}

// tagTree converts a parsed query for display.
func tagTree(q *query.Query) []TagNode {
	nodes := make([]TagNode, 0, q.Len())
	for _, t := range q.Tags {
		node := TagNode{
			Attr:     t.Attr,
			Optional: t.Optional,
			Flag:     t.IsFlag,
			Star:     t.IsStar(),
		}
		if t.IsParameter {
			node.Param = t.ParamName
		}
		if lit, ok := t.Literal(); ok {
			node.Value = lit
		}
		if nested, ok := t.Nested(); ok {
			node.Nested = tagTree(nested)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func printTags(w io.Writer, nodes []TagNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		var b strings.Builder
		b.WriteString(indent)
		if n.Flag {
			b.WriteString("--")
		}
		b.WriteString(n.Attr)
		if n.Attr == "" {
			b.WriteString("(group)")
		}
		if n.Optional {
			b.WriteString("?")
		}
		switch {
		case n.Param != "":
			fmt.Fprintf(&b, " = $%s", n.Param)
		case n.Star:
			b.WriteString(" = *")
		case n.Value != nil:
			fmt.Fprintf(&b, " = %v", n.Value)
		}
		fmt.Fprintln(w, b.String())
		if n.Nested != nil {
			printTags(w, n.Nested, depth+1)
		}
	}
}

// parseErrorCode picks the code for a parse failure.
func parseErrorCode(err error) string {
	var perr *query.ParseError
	if errors.As(err, &perr) {
		return ErrCodeParse
	}
	return ErrCodeGeneric
}

func outputParseError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message))
}
