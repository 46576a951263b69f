package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rqe/internal/compiler"
	"github.com/roach88/rqe/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled table plans.
type CompilationResult struct {
	Tables []TablePlan `json:"tables"`
}

// TablePlan is what the schema compiler derived for one table.
type TablePlan struct {
	Name               string      `json:"name"`
	Source             string      `json:"source,omitempty"`
	Attrs              []AttrPlan  `json:"attrs"`
	Indexes            []IndexPlan `json:"indexes"`
	Funcs              []FuncPlan  `json:"funcs"`
	PrimaryUniqueIndex string      `json:"primary_unique_index,omitempty"`
	DefaultIndex       string      `json:"default_index,omitempty"`
	InitialItems       int         `json:"initial_items,omitempty"`
}

// AttrPlan is a compiled attribute.
type AttrPlan struct {
	Name   string `json:"name"`
	Auto   bool   `json:"auto,omitempty"`
	Unique bool   `json:"unique,omitempty"`
	Policy string `json:"policy,omitempty"`
}

// IndexPlan is a compiled index.
type IndexPlan struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Attrs []string `json:"attrs,omitempty"`
}

// FuncPlan is a generated accessor.
type FuncPlan struct {
	Name     string `json:"name"`
	Declared string `json:"declared"`
	Index    string `json:"index,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile table specs and print their index plans",
		Long: `Compile CUE and YAML table declarations.

Every table is validated and run through the schema compiler. The output
lists the indexes each table will maintain and the accessors it exposes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadSpecs(specsDir)
	if loadResult == nil {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d spec file(s) in %s", loadResult.FileCount, specsDir)

	errs := loadErrors
	for _, v := range compiler.ValidateAll(loadResult.Tables) {
		errs = append(errs, v)
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Tables: make([]TablePlan, 0, len(loadResult.Tables))}
	for _, spec := range loadResult.Tables {
		formatter.VerboseLog("Compiling table: %s", spec.Name)
		s, err := schema.Compile(spec.Decl())
		if err != nil {
			return outputCompileError(formatter, compiler.ErrSchemaCompile, err.Error(), nil)
		}
		plan := planFor(s)
		plan.Source = spec.Source
		plan.InitialItems = len(spec.Initial)
		result.Tables = append(result.Tables, plan)
	}

	if opts.Output != "" {
		if err := writePlansToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// planFor describes a compiled schema.
func planFor(s *schema.Schema) TablePlan {
	plan := TablePlan{
		Name:               s.Name(),
		PrimaryUniqueIndex: s.PrimaryUniqueIndex(),
		DefaultIndex:       s.DefaultIndex(),
	}
	for _, a := range s.Attrs() {
		plan.Attrs = append(plan.Attrs, AttrPlan{
			Name:   a.Name,
			Auto:   a.IsAuto,
			Unique: a.Unique,
			Policy: string(a.Policy),
		})
	}
	for _, ix := range s.Indexes() {
		plan.Indexes = append(plan.Indexes, IndexPlan{
			Name:  ix.Name,
			Type:  string(ix.Type),
			Attrs: ix.Attrs,
		})
	}
	for _, f := range s.Funcs() {
		plan.Funcs = append(plan.Funcs, FuncPlan{
			Name:     f.PublicName,
			Declared: f.DeclaredName,
			Index:    f.IndexName,
		})
	}
	return plan
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d table(s)\n\n", len(result.Tables))

	for _, plan := range result.Tables {
		fmt.Fprintln(w, plan.Name)
		fmt.Fprintln(w, "  indexes:")
		for _, ix := range plan.Indexes {
			marker := ""
			if ix.Name == plan.PrimaryUniqueIndex {
				marker = " (primary)"
			}
			fmt.Fprintf(w, "    %-16s %s%s\n", ix.Name, ix.Type, marker)
		}
		names := make([]string, len(plan.Funcs))
		for i, f := range plan.Funcs {
			names[i] = f.Name
		}
		fmt.Fprintf(w, "  funcs: %s\n", strings.Join(names, ", "))
		if plan.InitialItems > 0 {
			fmt.Fprintf(w, "  initial items: %d\n", plan.InitialItems)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote index plans to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s: %s", verr.Table, verr.Field, verr.Message)
	}
	return ErrCodeGeneric, err.Error()
}

// writePlansToFile writes the compilation result as indented JSON.
func writePlansToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plans: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
