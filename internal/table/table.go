package table

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// Table is a compiled schema instantiated into live indexes.
type Table struct {
	schema  *schema.Schema
	indexes []Index
	byName  map[string]Index

	attrData  map[string]*attrData
	listeners []*listener
	accessors map[string]accessor
	status    Status

	logger            *slog.Logger
	ids               IDGenerator
	onUnhandled       func(error)
	suppressUnhandled bool
}

type attrData struct {
	next int64
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// WithIDGenerator sets the listener ID generator. Defaults to UUIDv7.
func WithIDGenerator(ids IDGenerator) Option {
	return func(t *Table) { t.ids = ids }
}

// WithUnhandledErrorHandler sets the hook for errors no caller can receive,
// such as a failing listener or a schema mismatch on a mirror. Defaults to
// logging at error level.
func WithUnhandledErrorHandler(fn func(error)) Option {
	return func(t *Table) { t.onUnhandled = fn }
}

// WithSuppressUnhandledErrors disables the unhandled error hook. The error
// is still recorded in Status.
func WithSuppressUnhandledErrors() Option {
	return func(t *Table) { t.suppressUnhandled = true }
}

// New instantiates a table: setup steps run in order, accessors are bound,
// and the declaration's Initialize hook runs last.
func New(s *schema.Schema, opts ...Option) (*Table, error) {
	t := &Table{
		schema:   s,
		attrData: make(map[string]*attrData),
		status:   Status{State: StateIdle},
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.onUnhandled == nil {
		t.onUnhandled = func(err error) {
			t.logger.Error("unhandled table error", "table", s.Name(), "error", err)
		}
	}

	t.buildIndexes()

	for _, step := range s.Setup() {
		switch step.Kind {
		case schema.SetupAutoCounters:
			for _, attr := range s.AutoAttrs() {
				t.attrData[attr] = &attrData{next: 1}
			}
		case schema.SetupInitListeners:
			t.listeners = []*listener{}
		}
	}

	if err := t.bind(); err != nil {
		return nil, err
	}

	if init := s.Initialize(); init != nil {
		if err := init(t); err != nil {
			return nil, fmt.Errorf("table %q: initialize: %w", s.Name(), err)
		}
	}

	t.logger.Debug("table created",
		"table", s.Name(),
		"indexes", len(t.indexes),
		"listening", s.SupportsListening())
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(s *schema.Schema, opts ...Option) *Table {
	t, err := New(s, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) buildIndexes() {
	t.indexes = t.indexes[:0]
	t.byName = make(map[string]Index)
	for _, ix := range t.schema.Indexes() {
		idx := createIndex(ix)
		t.indexes = append(t.indexes, idx)
		t.byName[ix.Name] = idx
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.schema.Name() }

// Schema returns the compiled schema.
func (t *Table) Schema() *schema.Schema { return t.schema }

// Supports reports whether the table has a function with the public or
// declared name.
func (t *Table) Supports(name string) bool { return t.schema.Supports(name) }

// Funcs returns the table's functions.
func (t *Table) Funcs() []schema.Func { return t.schema.Funcs() }

// Index returns a live index by name, for inspection.
func (t *Table) Index(name string) (Index, bool) {
	ix, ok := t.byName[name]
	return ix, ok
}

func (t *Table) defaultIndex() Index {
	return t.byName[t.schema.DefaultIndex()]
}

// Items returns a snapshot of all items in default index order.
func (t *Table) Items() []ir.IRObject {
	return t.defaultIndex().Items()
}

// Len returns the number of items.
func (t *Table) Len() int {
	return t.defaultIndex().Count()
}

// Each returns a lazy, non-restartable sequence over a snapshot of the
// table's items.
func (t *Table) Each() iter.Seq[ir.IRObject] {
	items := t.Items()
	return func(yield func(ir.IRObject) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// Insert adds an item to every index. The stored object is item itself;
// auto attributes are assigned on it when absent.
func (t *Table) Insert(item ir.IRObject) (ir.IRObject, error) {
	if item == nil {
		return nil, &ArgumentError{Func: "insert", Message: "item is nil"}
	}

	t.runPreInsert(item)

	if err := t.enforceConstraints(item); err != nil {
		return nil, err
	}
	if err := t.insertIntoIndexes(item); err != nil {
		return nil, err
	}

	t.logger.Debug("item inserted", "table", t.Name(), "item", ir.DescribeObject(item, nil))
	t.emitItem(item)
	return item, nil
}

func (t *Table) runPreInsert(item ir.IRObject) {
	for _, step := range t.schema.PreInsert() {
		data := t.attrData[step.AutoAttr]
		if data == nil {
			data = &attrData{next: 1}
			t.attrData[step.AutoAttr] = data
		}
		switch v := item[step.AutoAttr].(type) {
		case nil, ir.IRNull:
			item[step.AutoAttr] = ir.IRInt(data.next)
			data.next++
		case ir.IRInt:
			// Explicit values move the counter past them.
			if int64(v) >= data.next {
				data.next = int64(v) + 1
			}
		}
	}
}

// enforceConstraints checks every map index for an item already holding
// the new item's key. Error policies fail before anything changes; then
// overwrite policies evict the holders.
func (t *Table) enforceConstraints(item ir.IRObject) error {
	var victims []ir.IRObject
	seen := make(map[uintptr]bool)
	for _, c := range t.schema.Constraints() {
		ix := t.byName[c.IndexName]
		key := ix.Schema().KeyOf(item)
		existing, ok, err := ix.Get(key)
		if err != nil {
			return err
		}
		if !ok || ir.SameObject(existing, item) {
			continue
		}
		if c.Policy == schema.PolicyError {
			return &ConstraintError{Table: t.Name(), Index: c.IndexName, Key: schema.KeyString(key)}
		}
		if id := ir.Identity(existing); !seen[id] {
			seen[id] = true
			victims = append(victims, existing)
		}
	}
	for _, victim := range victims {
		t.removeItem(victim)
		t.emitDeletion(nil, nil, []ir.IRObject{victim})
	}
	return nil
}

// insertIntoIndexes adds item to every index in schema order. A failure
// part way leaves earlier indexes updated.
func (t *Table) insertIntoIndexes(item ir.IRObject) error {
	for _, ix := range t.indexes {
		if err := ix.Insert(item); err != nil {
			return fmt.Errorf("table %q: insert into index %q: %w", t.Name(), ix.Schema().Name, err)
		}
	}
	return nil
}

// removeItem deletes item, by reference, from every index.
func (t *Table) removeItem(item ir.IRObject) {
	for _, ix := range t.indexes {
		_ = ix.DeleteItem(ix.Schema().KeyOf(item), item)
	}
}

// lookup resolves a function of one of the given kinds.
func (t *Table) lookup(name string, kinds ...schema.FuncKind) (schema.Func, error) {
	f, ok := t.schema.Func(name)
	if !ok {
		return schema.Func{}, &UnsupportedOperationError{Table: t.Name(), Func: name}
	}
	for _, k := range kinds {
		if f.Kind == k {
			return f, nil
		}
	}
	return schema.Func{}, &UnsupportedOperationError{Table: t.Name(), Func: name, Op: kinds[0].String()}
}

// require checks that a parameterless function is declared.
func (t *Table) require(verb string) error {
	if !t.schema.Supports(verb) {
		return &UnsupportedOperationError{Table: t.Name(), Func: verb}
	}
	return nil
}

// keyFor computes the index and key addressed by f with args.
func (t *Table) keyFor(f schema.Func, args []ir.IRValue) (Index, schema.Key, error) {
	ix, ok := t.byName[f.IndexName]
	if !ok {
		return nil, nil, fmt.Errorf("table %q: %s has no index", t.Name(), f.PublicName)
	}
	values, err := f.ArgsForIndex(ix.Schema(), args)
	if err != nil {
		return nil, nil, &ArgumentError{Func: f.PublicName, Message: err.Error()}
	}
	if ix.Schema().Type == schema.IndexSingleValue {
		return ix, schema.SingleValueKey, nil
	}
	return ix, schema.KeyFromValues(values), nil
}

// Get returns the item addressed by a get function, or nil.
func (t *Table) Get(fn string, args ...ir.IRValue) (ir.IRObject, error) {
	f, err := t.lookup(fn, schema.FuncGet)
	if err != nil {
		return nil, err
	}
	ix, key, err := t.keyFor(f, args)
	if err != nil {
		return nil, err
	}
	item, _, err := ix.Get(key)
	return item, err
}

// List returns the items addressed by a list function.
func (t *Table) List(fn string, args ...ir.IRValue) ([]ir.IRObject, error) {
	f, err := t.lookup(fn, schema.FuncList)
	if err != nil {
		return nil, err
	}
	ix, key, err := t.keyFor(f, args)
	if err != nil {
		return nil, err
	}
	return ix.List(key)
}

// Has reports whether a has function finds an item.
func (t *Table) Has(fn string, args ...ir.IRValue) (bool, error) {
	f, err := t.lookup(fn, schema.FuncHas)
	if err != nil {
		return false, err
	}
	ix, key, err := t.keyFor(f, args)
	if err != nil {
		return false, err
	}
	return ix.Has(key)
}

// ListAll returns every item in default index order.
func (t *Table) ListAll() ([]ir.IRObject, error) {
	if err := t.require("listAll"); err != nil {
		return nil, err
	}
	return t.Items(), nil
}

// Count returns the number of items.
func (t *Table) Count() (int, error) {
	if err := t.require("count"); err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// First returns the first item in default index order, or nil.
func (t *Table) First() (ir.IRObject, error) {
	if err := t.require("first"); err != nil {
		return nil, err
	}
	items := t.Items()
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// Group is one key of a group_by result.
type Group struct {
	Values []ir.IRValue
	Items  []ir.IRObject
}

// GroupBy returns the items grouped by the function's attributes, in the
// order the groups were first seen.
func (t *Table) GroupBy(fn string) ([]Group, error) {
	f, err := t.lookup(fn, schema.FuncGroupBy)
	if err != nil {
		return nil, err
	}
	ix := t.byName[f.IndexName]
	keys, err := ix.Keys()
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		items, err := ix.List(key)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}
		groups = append(groups, Group{Values: f.ParamsOf(items[0]), Items: items})
	}
	return groups, nil
}
