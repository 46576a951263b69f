package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ErrNoSpecFiles is returned by LoadDir when dir holds no spec files.
var ErrNoSpecFiles = errors.New("no spec files found")

// IsSpecFile reports whether path has a spec extension (.cue, .yaml, .yml).
func IsSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	return false
}

// FindSpecFiles walks dir and returns every spec file in lexical order.
func FindSpecFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSpecFile(path) {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// LoadFile compiles the table specs of one file. CUE files are compiled
// on their own, so a spec cannot refer to definitions in another file.
func LoadFile(path string) ([]TableSpec, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read spec file: %w", err)}
	}

	if strings.ToLower(filepath.Ext(path)) != ".cue" {
		specs, err := ParseYAML(data, path)
		if err != nil {
			return nil, []error{fmt.Errorf("%s: %w", path, err)}
		}
		return specs, nil
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileTables(v, path)
}

// LoadDir loads every spec file under dir. Errors are collected across
// files; specs that compile are returned even when others fail.
func LoadDir(dir string) ([]TableSpec, []error) {
	files, err := FindSpecFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scan %s: %w", dir, err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("%w in %s", ErrNoSpecFiles, dir)}
	}
	return LoadFiles(files)
}

// LoadFiles loads the given spec files in order.
func LoadFiles(paths []string) ([]TableSpec, []error) {
	var specs []TableSpec
	var errs []error
	for _, path := range paths {
		s, e := LoadFile(path)
		specs = append(specs, s...)
		errs = append(errs, e...)
	}
	return specs, errs
}
