package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
)

// Replay feeds every recorded event of tableName into dest through its
// receiveUpdate function, in seq order. It returns the number of events
// applied.
//
// Replay stops at the first event dest rejects. A schema event dest
// cannot serve is reported with dest's status error.
func (j *Journal) Replay(ctx context.Context, tableName string, dest *table.Table) (int, error) {
	if !dest.Supports("receiveUpdate") {
		return 0, &table.UnsupportedOperationError{Table: dest.Name(), Func: "receiveUpdate"}
	}
	records, err := j.Events(ctx, tableName)
	if err != nil {
		return 0, fmt.Errorf("replay %q: %w", tableName, err)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		err := dest.ReceiveUpdate(rec.Event)
		if errors.Is(err, stream.ErrBackpressureStop) {
			if st := dest.Status(); st.Error != nil {
				err = st.Error
			}
		}
		if err != nil {
			return i, fmt.Errorf("replay %q: seq %d (%s): %w", tableName, rec.Seq, rec.Event.Type, err)
		}
	}

	j.logger.Debug("journal replayed", "table", tableName, "into", dest.Name(), "events", len(records))
	return len(records), nil
}

// Stream returns the recorded events of tableName as a stream. The stream
// ends after the last event, or earlier if a done or fail was recorded.
func (j *Journal) Stream(ctx context.Context, tableName string) (*stream.Stream, error) {
	records, err := j.Events(ctx, tableName)
	if err != nil {
		return nil, err
	}
	s := stream.New()
	for _, rec := range records {
		if err := s.Put(rec.Event); err != nil {
			break
		}
	}
	return s, nil
}
