package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// LazySchema compiles its declaration once, on first use.
type LazySchema struct {
	decl   Decl
	once   sync.Once
	schema *Schema
	err    error
}

// Lazy wraps a declaration whose compilation is deferred until Get.
func Lazy(decl Decl) *LazySchema {
	return &LazySchema{decl: decl}
}

// Get compiles the declaration on the first call and returns the cached
// result afterwards.
func (l *LazySchema) Get() (*Schema, error) {
	l.once.Do(func() {
		l.schema, l.err = Compile(l.decl)
	})
	return l.schema, l.err
}

// Name returns the declared table name without compiling.
func (l *LazySchema) Name() string { return l.decl.Name }

// Registry holds a fixed set of declarations compiled in one Init call.
//
// Register every declaration, call Init once, then look schemas up with
// Get. Register after Init fails; Get before Init finds nothing.
type Registry struct {
	mu      sync.RWMutex
	decls   []Decl
	schemas map[string]*Schema
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a declaration.
func (r *Registry) Register(decl Decl) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("schema registry: cannot register %q after Init", decl.Name)
	}
	for _, d := range r.decls {
		if d.Name == decl.Name {
			return fmt.Errorf("schema registry: duplicate table %q", decl.Name)
		}
	}
	r.decls = append(r.decls, decl)
	return nil
}

// Init compiles every registered declaration and freezes the registry.
// All compile errors are reported together; on error nothing is
// registered as compiled.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("schema registry: Init called twice")
	}

	compiled := make(map[string]*Schema, len(r.decls))
	var errs []error
	for _, decl := range r.decls {
		s, err := Compile(decl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		compiled[decl.Name] = s
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.schemas = compiled
	r.frozen = true
	return nil
}

// Get returns a compiled schema by table name.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decls))
	for _, d := range r.decls {
		names = append(names, d.Name)
	}
	slices.Sort(names)
	return names
}

// WithFuncs recompiles the schema's declaration with extra functions.
// Functions already declared are not repeated.
func (s *Schema) WithFuncs(funcs ...string) (*Schema, error) {
	decl := s.Decl()
	for _, f := range funcs {
		if !slices.Contains(decl.Funcs, f) {
			decl.Funcs = append(decl.Funcs, f)
		}
	}
	return Compile(decl)
}
