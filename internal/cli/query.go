package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rqe/internal/engine"
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Verb    string
	Explain bool // print the plan instead of running it
}

// QueryResult holds the items a query produced.
type QueryResult struct {
	Query  string      `json:"query"`
	Params ir.IRObject `json:"params,omitempty"`
	Items  ir.IRArray  `json:"items"`
}

// PlanResult describes how a query would run.
type PlanResult struct {
	Query    string      `json:"query"`
	Handler  string      `json:"handler"`
	Inputs   []PlanInput `json:"inputs"`
	Outputs  []string    `json:"outputs"`
	Required []string    `json:"required_params,omitempty"`
}

// PlanInput is one resolved handler input.
type PlanInput struct {
	Attr   string `json:"attr"`
	Source string `json:"source"`
	Value  string `json:"value,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir> <query> [name=value...]",
		Short: "Run a query against tables built from specs",
		Long: `Build every table declared under specs-dir, load its initial items,
mount it on a query graph and run one query.

Trailing name=value arguments fill $parameters; values use the query
literal syntax (integers, true/false, bare or quoted strings).

Exit codes:
  0 - Query succeeded
  1 - Query failed (no handler, missing parameter, ...)
  2 - Command error (bad specs, bad parameters)

Examples:
  rqe query ./specs 'users id=1 name'
  rqe query ./specs 'users id=$id name role' id=2
  rqe query ./specs 'users role=dev name' --explain`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Verb, "verb", engine.VerbGet, "query verb")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the plan without running it")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, specsDir, text string, paramArgs []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	params, err := ParseParams(paramArgs)
	if err != nil {
		return outputQueryError(formatter, ExitCommandError, ErrCodeGeneric, err.Error())
	}

	loadResult, loadErrors := LoadSpecs(specsDir)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputQueryError(formatter, ExitCommandError, code, message)
	}
	g, tables, err := BuildTables(loadResult.Tables, opts.RootOptions)
	if err != nil {
		return outputQueryError(formatter, ExitCommandError, ErrCodeBuildFailed, err.Error())
	}
	formatter.VerboseLog("Mounted %d table(s), %d handler(s)", len(tables), len(g.Handlers()))

	if opts.Explain {
		return explainQuery(formatter, g, text, opts.Verb)
	}

	c := stream.Collect(g.QueryWithVerb(ctx, opts.Verb, text, params))
	if details := c.Err(); details != nil {
		return formatter.QueryFailure(details)
	}

	items := make(ir.IRArray, len(c.Items()))
	for i, item := range c.Items() {
		items[i] = item
	}
	opts.logger().Debug("query finished", "query", text, "items", len(items))

	if formatter.Format == "json" {
		result := QueryResult{Query: text, Items: items}
		if len(params) > 0 {
			result.Params = params
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, item := range items {
		fmt.Fprintln(w, ir.MustCanonical(item))
	}
	formatter.VerboseLog("%d item(s)", len(items))
	return nil
}

func explainQuery(formatter *OutputFormatter, g *engine.Graph, text, verb string) error {
	q, err := query.Parse(text)
	if err != nil {
		return outputQueryError(formatter, ExitFailure, ErrCodeParse, err.Error())
	}
	plan := g.BuildPlan(q, verb)
	if plan.KnownError != nil {
		return formatter.QueryFailure(plan.KnownError)
	}

	result := PlanResult{Query: q.String(), Handler: plan.Handler().Decl()}
	for _, in := range plan.Inputs {
		pi := PlanInput{Attr: in.Attr, Source: in.Kind.String()}
		switch in.Kind {
		case engine.InputLiteral:
			pi.Value = ir.MustCanonical(in.Literal)
		case engine.InputParam:
			pi.Value = "$" + in.ParamName
		}
		result.Inputs = append(result.Inputs, pi)
	}
	for _, out := range plan.Outputs {
		result.Outputs = append(result.Outputs, out.Attr)
	}
	for _, p := range plan.RequiredParams {
		result.Required = append(result.Required, p.ParamName)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "query:   %s\n", result.Query)
	fmt.Fprintf(w, "handler: %s\n", result.Handler)
	for _, in := range result.Inputs {
		if in.Value != "" {
			fmt.Fprintf(w, "  input %s <- %s %s\n", in.Attr, in.Source, in.Value)
			continue
		}
		fmt.Fprintf(w, "  input %s <- %s\n", in.Attr, in.Source)
	}
	fmt.Fprintf(w, "outputs: %s\n", strings.Join(result.Outputs, " "))
	return nil
}

// ParseParams parses name=value arguments. Values follow the query
// literal syntax, so "id=2" is an integer and "name=ada" a string.
func ParseParams(args []string) (ir.IRObject, error) {
	params := make(ir.IRObject, len(args))
	for _, arg := range args {
		name, _, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", arg)
		}
		q, err := query.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", arg, err)
		}
		if q.Len() != 1 {
			return nil, fmt.Errorf("invalid parameter %q: expected a single value", arg)
		}
		v, ok := q.Tags[0].Literal()
		if !ok {
			return nil, fmt.Errorf("invalid parameter %q: value must be a literal", arg)
		}
		params[q.Tags[0].Attr] = v
	}
	return params, nil
}

func outputQueryError(formatter *OutputFormatter, exitCode int, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}
