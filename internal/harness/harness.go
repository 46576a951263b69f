package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/compiler"
	"github.com/roach88/rqe/internal/engine"
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/journal"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
	"github.com/roach88/rqe/internal/testutil"
)

// Harness runs one scenario against freshly built tables.
//
// Every table is mounted on a query graph. Listen steps record through an
// in-memory journal sharing the harness clock, so steps and the events
// they cause interleave in one seq order.
type Harness struct {
	tables     map[string]*table.Table
	order      []string
	graph      *engine.Graph
	journal    *journal.Journal
	clock      *engine.Clock
	recordings []*journal.Recording
	unhandled  []string
	logger     *slog.Logger

	journalPath string
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger. Logs are discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithJournalPath records into a journal file instead of memory. The file
// should not exist yet, or traces stop being reproducible.
func WithJournalPath(path string) Option {
	return func(h *Harness) {
		h.journalPath = path
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal with a deterministic
// clock and listener IDs, so the same scenario yields the same trace on
// every run.
//
// An error is returned when the scenario cannot run at all (bad specs,
// unknown tables). Failed steps and assertions are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		tables: make(map[string]*table.Table),
		clock:  engine.NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),

		journalPath: ":memory:",
	}
	for _, opt := range opts {
		opt(h)
	}

	j, err := journal.Open(h.journalPath,
		journal.WithClock(h.clock),
		journal.WithIDGenerator(testutil.NewSequentialIDs("recording")),
		journal.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", h.journalPath, err)
	}
	defer j.Close()
	h.journal = j

	if err := h.loadTables(scenario); err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	if err := h.collectEvents(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range h.unhandled {
		result.AddError(msg)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Tables:  h.tables,
		Graph:   h.graph,
		Journal: h.journal,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	for _, name := range h.order {
		result.State[name] = itemsIR(h.tables[name].Items())
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"trace", len(result.Trace),
		"errors", len(result.Errors))
	return result, nil
}

// loadTables compiles the scenario's spec files and inline tables, then
// builds and mounts one table per spec in declaration order.
func (h *Harness) loadTables(scenario *Scenario) error {
	specs, errs := compiler.LoadFiles(scenario.Specs)
	if len(errs) > 0 {
		return fmt.Errorf("failed to load specs: %w", errors.Join(errs...))
	}

	for i, td := range scenario.Tables {
		initial := make([]ir.IRObject, 0, len(td.Initial))
		for k, item := range td.Initial {
			obj, err := convertArgsToIRObject(item)
			if err != nil {
				return fmt.Errorf("tables[%d].initial[%d]: %w", i, k, err)
			}
			initial = append(initial, obj)
		}
		specs = append(specs, compiler.TableSpec{
			Name:    td.Name,
			Attrs:   td.Attrs,
			Funcs:   td.Funcs,
			Initial: initial,
			Source:  scenario.Name,
		})
	}

	if verrs := compiler.ValidateAll(specs); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, verr := range verrs {
			joined[i] = verr
		}
		return fmt.Errorf("invalid table specs: %w", errors.Join(joined...))
	}

	h.graph = engine.NewGraph(engine.WithLogger(h.logger))
	ids := testutil.NewSequentialIDs("listener")
	for _, spec := range specs {
		s, err := schema.Compile(spec.Decl())
		if err != nil {
			return err
		}
		t, err := table.New(s,
			table.WithLogger(h.logger),
			table.WithIDGenerator(ids),
			table.WithUnhandledErrorHandler(h.onUnhandled))
		if err != nil {
			return err
		}
		if err := h.graph.MountTable(t); err != nil {
			return err
		}
		h.tables[spec.Name] = t
		h.order = append(h.order, spec.Name)
	}
	return nil
}

func (h *Harness) onUnhandled(err error) {
	h.logger.Warn("unhandled table error", "error", err)
	h.unhandled = append(h.unhandled, fmt.Sprintf("unhandled: %v", err))
}

func (h *Harness) table(name string) (*table.Table, error) {
	t, ok := h.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// executeStep runs one step and records it in the trace. The step's seq
// is taken before it runs, so it precedes the events it causes.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var t *table.Table
	if step.Op != OpQuery {
		var err error
		if t, err = h.table(step.Table); err != nil {
			return err
		}
	}

	seq := h.clock.Next()
	var out outcome
	var err error
	switch step.Op {
	case OpInsert:
		out, err = h.insert(t, step)
	case OpDelete:
		out, err = h.delete(t, step)
	case OpUpdate:
		out, err = h.update(t, step)
	case OpQuery:
		out, err = h.query(ctx, i, step, result)
	case OpListen:
		out = h.listen(ctx, t, step)
	case OpMirror:
		out, err = h.mirror(t, step)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return err
	}
	detail, stepErr := out.detail, out.err

	switch {
	case stepErr != nil && step.Error == "":
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, stepErr))
	case stepErr == nil && step.Error != "":
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got none", i, step.Op, step.Error))
	case stepErr != nil && !errorMatches(step, stepErr):
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got %v", i, step.Op, step.Error, stepErr))
	}
	if stepErr != nil {
		detail["error"] = ir.IRString(errorText(stepErr))
	}

	result.AddStepTrace(seq, step.Op, step.Table, detail)
	h.logger.Debug("step completed", "step", i, "op", step.Op, "table", step.Table, "seq", seq)
	return nil
}

// outcome is what a step did: its trace detail and the operation's own
// failure, which is checked against the step's expected error. Ops return
// a separate error only for steps that cannot run.
type outcome struct {
	detail ir.IRObject
	err    error
}

func (h *Harness) insert(t *table.Table, step Step) (outcome, error) {
	item, err := convertArgsToIRObject(step.Item)
	if err != nil {
		return outcome{}, fmt.Errorf("item: %w", err)
	}
	stored, err := t.Insert(item)
	if err != nil {
		return outcome{detail: ir.IRObject{"item": item}, err: err}, nil
	}
	// The stored object changes under later updates; the trace keeps this
	// moment's version.
	return outcome{detail: ir.IRObject{"item": stored.Clone()}}, nil
}

func (h *Harness) delete(t *table.Table, step Step) (outcome, error) {
	args, err := convertArgs(step.Args)
	if err != nil {
		return outcome{}, err
	}
	n, err := t.Delete(step.Func, args...)
	return outcome{
		detail: ir.IRObject{
			"func":    ir.IRString(step.Func),
			"args":    ir.IRArray(args),
			"deleted": ir.IRInt(n),
		},
		err: err,
	}, nil
}

func (h *Harness) update(t *table.Table, step Step) (outcome, error) {
	args, err := convertArgs(step.Args)
	if err != nil {
		return outcome{}, err
	}
	set, err := convertArgsToIRObject(step.Set)
	if err != nil {
		return outcome{}, fmt.Errorf("set: %w", err)
	}
	fn := step.Func
	if fn == "" {
		fn = "update"
	}
	n, err := t.Update(fn, args, func(item ir.IRObject) ir.IRObject {
		for k, v := range set {
			item[k] = v
		}
		return nil
	})
	return outcome{
		detail: ir.IRObject{
			"func":    ir.IRString(fn),
			"args":    ir.IRArray(args),
			"set":     set,
			"updated": ir.IRInt(n),
		},
		err: err,
	}, nil
}

func (h *Harness) query(ctx context.Context, i int, step Step, result *Result) (outcome, error) {
	params, err := convertArgsToIRObject(step.Params)
	if err != nil {
		return outcome{}, fmt.Errorf("params: %w", err)
	}
	items, details := runQuery(ctx, h.graph, step.Query, params)

	detail := ir.IRObject{"query": ir.IRString(step.Query)}
	if len(params) > 0 {
		detail["params"] = params
	}
	if details != nil {
		return outcome{detail: detail, err: details}, nil
	}
	detail["items"] = itemsIR(items)

	if step.Expect != nil {
		msg, err := compareItems(items, step.Expect)
		if err != nil {
			return outcome{}, fmt.Errorf("expect: %w", err)
		}
		if msg != "" {
			result.AddError(fmt.Sprintf("steps[%d] query %q: %s", i, step.Query, msg))
		}
	}
	return outcome{detail: detail}, nil
}

func (h *Harness) listen(ctx context.Context, t *table.Table, step Step) outcome {
	rec, err := h.journal.Attach(ctx, t, table.ListenOptions{
		DeletionIndexName: step.DeletionIndex,
		GetInitialData:    step.InitialData,
	})
	if err != nil {
		return outcome{detail: ir.IRObject{}, err: err}
	}
	h.recordings = append(h.recordings, rec)
	return outcome{detail: ir.IRObject{"listener": ir.IRString(rec.ID)}}
}

func (h *Harness) mirror(t *table.Table, step Step) (outcome, error) {
	dest, err := h.table(step.Into)
	if err != nil {
		return outcome{}, err
	}
	detail := ir.IRObject{"into": ir.IRString(step.Into)}
	s, err := t.Listen(table.ListenOptions{
		DeletionIndexName: step.DeletionIndex,
		GetInitialData:    step.InitialData,
	})
	if err != nil {
		return outcome{detail: detail, err: err}, nil
	}
	return outcome{detail: detail, err: dest.ListenToStream(s)}, nil
}

// collectEvents merges every recorded listener event into the trace.
func (h *Harness) collectEvents(ctx context.Context, result *Result) error {
	for _, rec := range h.recordings {
		if err := rec.Err(); err != nil {
			result.AddError(fmt.Sprintf("recording %s: %v", rec.ID, err))
		}
		records, err := h.journal.RecordingEvents(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("read recording %s: %w", rec.ID, err)
		}
		for _, r := range records {
			result.AddEventTrace(r.Seq, r.Table, r.RecordingID, r.Event.ToIR())
		}
	}
	slices.SortStableFunc(result.Trace, func(a, b TraceEvent) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return nil
}

// runQuery runs a get query and drains its stream.
func runQuery(ctx context.Context, g *engine.Graph, text string, params ir.IRObject) ([]ir.IRObject, *stream.ErrorDetails) {
	c := stream.Collect(g.Query(ctx, text, params))
	if details := c.Err(); details != nil {
		return nil, details
	}
	return c.Items(), nil
}

func errorMatches(step Step, err error) bool {
	var details *stream.ErrorDetails
	if step.Op == OpQuery && errors.As(err, &details) {
		return details.ErrorType == step.Error
	}
	return strings.Contains(err.Error(), step.Error)
}

func errorText(err error) string {
	var details *stream.ErrorDetails
	if errors.As(err, &details) {
		return details.ErrorType
	}
	return err.Error()
}

func itemsIR(items []ir.IRObject) ir.IRArray {
	arr := make(ir.IRArray, len(items))
	for i, item := range items {
		arr[i] = item.Clone()
	}
	return arr
}

// convertArgsToIRObject converts a YAML-parsed map to an ir.IRObject.
func convertArgsToIRObject(args map[string]any) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject, len(args))
	for key, val := range args {
		irVal, err := ir.FromGo(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertArgs converts positional function arguments.
func convertArgs(args []any) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(args))
	for i, arg := range args {
		v, err := ir.FromGo(arg)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
