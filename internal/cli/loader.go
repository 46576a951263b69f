package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/rqe/internal/compiler"
	"github.com/roach88/rqe/internal/engine"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/table"
)

// LoadResult contains the table specs loaded from a directory.
type LoadResult struct {
	Tables    []compiler.TableSpec
	FileCount int // Number of spec files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads every CUE and YAML spec under dir. A nil result means
// the directory itself could not be used; otherwise the errors are per
// file or per table and the result holds the specs that compiled.
func LoadSpecs(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := compiler.FindSpecFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no spec files found in %s", dir)}}
	}

	specs, errs := compiler.LoadFiles(files)
	loadErrs := make([]error, len(errs))
	for i, e := range errs {
		loadErrs[i] = convertCompileError(e)
	}
	return &LoadResult{Tables: specs, FileCount: len(files)}, loadErrs
}

// BuildTables validates specs, then creates one table per spec and mounts
// it on a new graph, in spec order.
func BuildTables(specs []compiler.TableSpec, opts *RootOptions) (*engine.Graph, map[string]*table.Table, error) {
	if verrs := compiler.ValidateAll(specs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, nil, errors.Join(errs...)
	}

	logger := opts.logger()
	g := engine.NewGraph(engine.WithLogger(logger))
	tables := make(map[string]*table.Table, len(specs))
	for _, spec := range specs {
		s, err := schema.Compile(spec.Decl())
		if err != nil {
			return nil, nil, err
		}
		t, err := table.New(s, table.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("table %s: %w", spec.Name, err)
		}
		if err := g.MountTable(t); err != nil {
			return nil, nil, err
		}
		tables[spec.Name] = t
		logger.Debug("table mounted", "table", spec.Name, "items", t.Len())
	}
	return g, tables, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No spec files found
	ErrCodeLoadFailed  = "E004" // Spec file could not be read or parsed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Tables could not be built
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeQueryFailed = "E008" // Query failed
	ErrCodeJournal     = "E009" // Journal could not be read
	ErrCodeInvalidType = "E010" // Unsupported value, e.g. a float in initial items
	ErrCodeParse       = "E011" // Query syntax error
)

// MapFieldToErrorCode maps a compiler error field to an error code. Table
// level fields share the validator's E1xx codes.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return compiler.ErrInvalidTableName
	case "attrs":
		return compiler.ErrNoAttrs
	case "type":
		return ErrCodeInvalidType
	case "initial":
		return compiler.ErrUnknownInitialKey
	case "cue", "tables":
		return ErrCodeLoadFailed
	default:
		return ErrCodeGeneric
	}
}
