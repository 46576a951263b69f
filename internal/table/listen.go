package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
)

// ListenOptions configures a listener.
type ListenOptions struct {
	// DeletionIndexName restricts deltas to the delete function on this
	// index: every deletion is reported per item, keyed by that index.
	// Empty means deltas name whichever delete function ran.
	DeletionIndexName string

	// GetInitialData sends the current items after the restart.
	GetInitialData bool
}

type listener struct {
	id         string
	stream     *stream.Stream
	deleteFunc *schema.Func
}

// StatusState is the replication state of a mirror table.
type StatusState string

const (
	StateIdle StatusState = "idle"
	// StateLoading is set by every restart and held until done or fail.
	// Listener streams open with a restart and carry no end-of-snapshot
	// marker, so a live mirror reports loading for as long as it follows
	// its source, initial items included.
	StateLoading StatusState = "loading"
	StateDone    StatusState = "done"
	StateError   StatusState = "error"
)

// Status is the replication status of a table fed by ReceiveUpdate.
type Status struct {
	State StatusState
	Error *stream.ErrorDetails
}

// Status returns the replication status.
func (t *Table) Status() Status { return t.status }

// GetStatus returns the replication status. It needs getStatus.
func (t *Table) GetStatus() (Status, error) {
	if err := t.require("getStatus"); err != nil {
		return Status{}, err
	}
	return t.status, nil
}

// Listen registers a listener and returns its stream. The stream starts
// with a schema event naming the delete functions deltas will use, then a
// restart, then the current items when requested. Later mutations follow
// as item, delta and restart events.
func (t *Table) Listen(opts ListenOptions) (*stream.Stream, error) {
	if err := t.require("listen"); err != nil {
		return nil, err
	}

	l := &listener{id: t.ids.Generate(), stream: stream.New()}
	info := stream.SchemaInfo{Name: t.Name()}
	if opts.DeletionIndexName != "" {
		deletes := t.schema.DeleteFuncsOn(opts.DeletionIndexName)
		if len(deletes) == 0 {
			return nil, &ArgumentError{
				Func:    "listen",
				Message: fmt.Sprintf("no delete function on index %q", opts.DeletionIndexName),
			}
		}
		l.deleteFunc = &deletes[0]
		info.Funcs = []string{deletes[0].DeclaredName}
	} else {
		for _, f := range t.schema.FuncsOfKind(schema.FuncDelete) {
			info.Funcs = append(info.Funcs, f.DeclaredName)
		}
	}

	// Puts before a receiver attaches are buffered and cannot fail.
	_ = l.stream.Put(stream.Schema(info))
	_ = l.stream.Restart()
	if opts.GetInitialData {
		for _, item := range t.Items() {
			_ = l.stream.Item(item)
		}
	}

	t.listeners = append(t.listeners, l)
	l.stream.OnClose(func() { t.removeListener(l) })

	t.logger.Debug("listener added",
		"table", t.Name(),
		"listener", l.id,
		"deletion_index", opts.DeletionIndexName,
		"initial_data", opts.GetInitialData)
	return l.stream, nil
}

// ListenerCount returns the number of live listeners.
func (t *Table) ListenerCount() int { return len(t.listeners) }

func (t *Table) removeListener(l *listener) {
	t.listeners = slices.DeleteFunc(t.listeners, func(x *listener) bool { return x == l })
}

// send delivers evt to one listener and drops the listener if delivery
// fails. Other listeners are unaffected.
func (t *Table) send(l *listener, evt stream.Event) {
	err := l.stream.Put(evt)
	if err == nil {
		return
	}
	t.removeListener(l)
	if errors.Is(err, stream.ErrBackpressureStop) || errors.Is(err, stream.ErrClosed) {
		t.logger.Debug("listener dropped", "table", t.Name(), "listener", l.id, "reason", err)
		return
	}
	t.unhandled(fmt.Errorf("table %q: listener %s: %w", t.Name(), l.id, err))
}

func (t *Table) unhandled(err error) {
	if t.suppressUnhandled {
		return
	}
	t.onUnhandled(err)
}

// fanOut runs fn for each listener registered when the call started.
func (t *Table) fanOut(fn func(l *listener)) {
	for _, l := range slices.Clone(t.listeners) {
		fn(l)
	}
}

func (t *Table) emitItem(item ir.IRObject) {
	t.fanOut(func(l *listener) { t.send(l, stream.Item(item)) })
}

func (t *Table) emitRestart() {
	t.fanOut(func(l *listener) { t.send(l, stream.Restart()) })
}

// emitDeletion reports removed items. via and args describe the delete
// function the caller invoked; they are nil for internal deletions such
// as evictions, which are reported through the primary delete function.
func (t *Table) emitDeletion(via *schema.Func, args []ir.IRValue, items []ir.IRObject) {
	if len(t.listeners) == 0 || len(items) == 0 {
		return
	}
	primary := t.primaryDelete()
	t.fanOut(func(l *listener) {
		switch {
		case l.deleteFunc != nil:
			for _, item := range items {
				t.send(l, stream.Delta(l.deleteFunc.DeclaredName, l.deleteFunc.ParamsOf(item)...))
			}
		case via != nil:
			t.send(l, stream.Delta(via.DeclaredName, args...))
		case primary != nil:
			for _, item := range items {
				t.send(l, stream.Delta(primary.DeclaredName, primary.ParamsOf(item)...))
			}
		default:
			t.resync(l)
		}
	})
}

// emitUpdates reports a batch of updates: deletes for every old key and
// evicted holder first, then the updated items. Sending all deletes ahead
// of the items keeps a mirror correct when items of the batch trade keys.
// Without update events listeners are resynced instead.
func (t *Table) emitUpdates(changes []*change, evicted []ir.IRObject) {
	if len(t.listeners) == 0 {
		return
	}
	if !t.schema.SupportsUpdateEvents() {
		t.fanOut(t.resync)
		return
	}
	deleted := slices.Clone(evicted)
	for _, ch := range changes {
		deleted = append(deleted, ch.snapshot)
	}
	t.emitDeletion(nil, nil, deleted)
	for _, ch := range changes {
		if !ch.evicted {
			t.emitItem(ch.new)
		}
	}
}

// resync sends a restart and every current item.
func (t *Table) resync(l *listener) {
	t.send(l, stream.Restart())
	for _, item := range t.Items() {
		if !slices.Contains(t.listeners, l) {
			return
		}
		t.send(l, stream.Item(item))
	}
}

func (t *Table) primaryDelete() *schema.Func {
	attr := t.schema.PrimaryUniqueAttr()
	if attr == "" {
		return nil
	}
	f, ok := t.schema.FuncByDeclaredName("delete(" + attr + ")")
	if !ok {
		return nil
	}
	return &f
}

// MissingFuncs returns the functions named by info that the table lacks.
func (t *Table) MissingFuncs(info stream.SchemaInfo) []string {
	var missing []string
	for _, fn := range info.Funcs {
		if !t.schema.Supports(fn) {
			missing = append(missing, fn)
		}
	}
	return missing
}

// AssertFitsSchema checks that the table can apply every delta a source
// with the given schema will send.
func (t *Table) AssertFitsSchema(info stream.SchemaInfo) error {
	if d := t.schemaMismatch(info); d != nil {
		return d
	}
	return nil
}

func (t *Table) schemaMismatch(info stream.SchemaInfo) *stream.ErrorDetails {
	missing := t.MissingFuncs(info)
	if len(missing) == 0 {
		return nil
	}
	return stream.NewErrorDetails(stream.ErrTypeSchemaMismatch,
		"table %q is missing functions required by %q: %s", t.Name(), info.Name, strings.Join(missing, ", "))
}

// ReceiveUpdate applies one event of a listener stream to this table.
// Returning stream.ErrBackpressureStop asks the source to stop sending.
func (t *Table) ReceiveUpdate(evt stream.Event) error {
	if err := t.require("receiveUpdate"); err != nil {
		return err
	}
	return t.receive(evt)
}

func (t *Table) receive(evt stream.Event) error {
	switch evt.Type {
	case stream.TypeItem:
		// The source keeps its own object; mirrors must not share it.
		if _, err := t.Insert(evt.Item.Clone()); err != nil {
			t.fail(stream.ToErrorDetails(err))
			return err
		}

	case stream.TypeDelta:
		f, ok := t.schema.FuncByDeclaredName(evt.Func)
		if !ok || f.Kind != schema.FuncDelete {
			err := &ProtocolError{Table: t.Name(), Message: fmt.Sprintf("unsupported delta function %q", evt.Func)}
			t.fail(stream.NewErrorDetails(stream.ErrTypeProtocol, "%s", err.Message))
			return err
		}
		if _, err := t.Delete(f.PublicName, evt.Params...); err != nil {
			return err
		}

	case stream.TypeRestart:
		t.status = Status{State: StateLoading}
		for _, ix := range t.indexes {
			ix.Clear()
		}
		t.emitRestart()

	case stream.TypeSchema:
		if evt.Schema == nil {
			return &ProtocolError{Table: t.Name(), Message: "schema event without schema"}
		}
		missing := t.MissingFuncs(*evt.Schema)
		if len(missing) == 0 {
			return nil
		}
		if t.schema.Supports("upgradeSchema") {
			t.logger.Info("upgrading schema for incoming stream", "table", t.Name(), "funcs", missing)
			return t.upgradeSchema(missing)
		}
		details := t.schemaMismatch(*evt.Schema)
		t.fail(details)
		t.unhandled(details)
		return stream.ErrBackpressureStop

	case stream.TypeDone:
		if t.status.State != StateError {
			t.status = Status{State: StateDone}
		}

	case stream.TypeFail:
		if t.status.State != StateError {
			t.status = Status{State: StateError, Error: evt.Error}
		}
	}
	return nil
}

func (t *Table) fail(details *stream.ErrorDetails) {
	t.status = Status{State: StateError, Error: details}
}

// ListenToStream makes this table a mirror of an upstream listener
// stream.
func (t *Table) ListenToStream(s *stream.Stream) error {
	if err := t.require("listenToStream"); err != nil {
		return err
	}
	return s.SendTo(t.receive)
}

// UpgradeSchema recompiles the table with extra functions. Items, auto
// counters and listeners are kept.
func (t *Table) UpgradeSchema(funcs []string) error {
	if err := t.require("upgradeSchema"); err != nil {
		return err
	}
	return t.upgradeSchema(funcs)
}

func (t *Table) upgradeSchema(funcs []string) error {
	next, err := t.schema.WithFuncs(funcs...)
	if err != nil {
		return fmt.Errorf("table %q: upgrade schema: %w", t.Name(), err)
	}
	items := t.Items()

	t.schema = next
	t.buildIndexes()
	for _, item := range items {
		if err := t.insertIntoIndexes(item); err != nil {
			return err
		}
	}
	for _, attr := range next.AutoAttrs() {
		if t.attrData[attr] == nil {
			t.attrData[attr] = &attrData{next: 1}
		}
	}
	if next.SupportsListening() && t.listeners == nil {
		t.listeners = []*listener{}
	}
	if err := t.bind(); err != nil {
		return err
	}

	t.logger.Info("schema upgraded", "table", t.Name(), "funcs", funcs, "indexes", len(t.indexes))
	return nil
}
