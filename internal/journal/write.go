package journal

import (
	"context"
	"fmt"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
)

// Record is one stored event.
type Record struct {
	Seq         int64
	Table       string
	RecordingID string
	Event       stream.Event
	Hash        string
}

// RegisterTable records a table's declaration. Registering the same name
// again replaces the stored declaration; events already recorded are kept.
func (j *Journal) RegisterTable(ctx context.Context, s *schema.Schema) error {
	desc := declIR(s.Decl())
	hash, err := ir.SchemaHash(desc)
	if err != nil {
		return fmt.Errorf("register table %q: %w", s.Name(), err)
	}
	declJSON, err := ir.MarshalCanonical(desc)
	if err != nil {
		return fmt.Errorf("register table %q: %w", s.Name(), err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO tables (name, schema_hash, decl, registered_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_hash = excluded.schema_hash,
			decl = excluded.decl,
			registered_seq = excluded.registered_seq
	`, s.Name(), hash, string(declJSON), j.clock.Next())
	if err != nil {
		return fmt.Errorf("register table %q: %w", s.Name(), err)
	}
	j.logger.Debug("journal table registered", "table", s.Name(), "schema_hash", hash)
	return nil
}

// Append stores one event for a registered table and returns the record.
func (j *Journal) Append(ctx context.Context, tableName, recordingID string, evt stream.Event) (Record, error) {
	payload, hash, err := marshalEvent(evt)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Seq:         j.clock.Next(),
		Table:       tableName,
		RecordingID: recordingID,
		Event:       evt,
		Hash:        hash,
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (seq, table_name, recording_id, type, payload, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Seq, tableName, recordingID, string(evt.Type), payload, hash)
	if err != nil {
		return Record{}, fmt.Errorf("append event to %q: %w", tableName, err)
	}
	return rec, nil
}
