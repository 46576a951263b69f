package journal

import (
	"context"
	"fmt"

	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
)

// Recording is a listener on a table whose events are appended to the
// journal.
type Recording struct {
	ID    string
	Table string

	stream *stream.Stream
	count  int
	err    error
}

// Attach registers t and starts recording its listener stream. Pass
// GetInitialData so the recording is a complete copy of the table, not
// just the changes from now on.
//
// If an append fails the recording stops and Err reports why; the table
// drops the listener and carries on.
func (j *Journal) Attach(ctx context.Context, t *table.Table, opts table.ListenOptions) (*Recording, error) {
	if err := j.RegisterTable(ctx, t.Schema()); err != nil {
		return nil, err
	}
	s, err := t.Listen(opts)
	if err != nil {
		return nil, fmt.Errorf("attach %q: %w", t.Name(), err)
	}

	rec := &Recording{ID: j.ids.Generate(), Table: t.Name(), stream: s}
	err = s.SendTo(func(evt stream.Event) error {
		if _, err := j.Append(ctx, rec.Table, rec.ID, evt); err != nil {
			rec.err = err
			j.logger.Error("journal append failed; recording stopped",
				"table", rec.Table,
				"recording", rec.ID,
				"event", evt.Type,
				"error", err)
			return err
		}
		rec.count++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach %q: %w", t.Name(), err)
	}

	j.logger.Debug("journal recording started", "table", rec.Table, "recording", rec.ID)
	return rec, nil
}

// Stop detaches the recording from its table.
func (r *Recording) Stop() {
	r.stream.Close()
}

// Active reports whether the recording still receives events.
func (r *Recording) Active() bool { return !r.stream.IsClosed() }

// Count returns the number of events recorded.
func (r *Recording) Count() int { return r.count }

// Err returns the append error that stopped the recording, if any.
func (r *Recording) Err() error { return r.err }
