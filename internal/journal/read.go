package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
)

// TableRecord is a registered table.
type TableRecord struct {
	Name          string
	SchemaHash    string
	Decl          schema.Decl
	RegisteredSeq int64
}

// Tables returns the registered tables ordered by name.
func (j *Journal) Tables(ctx context.Context) ([]TableRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT name, schema_hash, decl, registered_seq
		FROM tables
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := []TableRecord{}
	for rows.Next() {
		var tr TableRecord
		var declJSON string
		if err := rows.Scan(&tr.Name, &tr.SchemaHash, &declJSON, &tr.RegisteredSeq); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		var obj ir.IRObject
		if err := json.Unmarshal([]byte(declJSON), &obj); err != nil {
			return nil, fmt.Errorf("table %q: unmarshal decl: %w", tr.Name, err)
		}
		tr.Decl = declFromIR(obj)
		tables = append(tables, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// Table returns one registered table.
func (j *Journal) Table(ctx context.Context, name string) (TableRecord, bool, error) {
	tables, err := j.Tables(ctx)
	if err != nil {
		return TableRecord{}, false, err
	}
	for _, tr := range tables {
		if tr.Name == name {
			return tr, true, nil
		}
	}
	return TableRecord{}, false, nil
}

// Events returns every event of a table ordered by seq.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (j *Journal) Events(ctx context.Context, tableName string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, table_name, recording_id, payload, payload_hash
		FROM events
		WHERE table_name = ?
		ORDER BY seq ASC, id ASC
	`, tableName)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanRecords(rows)
}

// RecordingEvents returns the events of one recording ordered by seq.
func (j *Journal) RecordingEvents(ctx context.Context, recordingID string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, table_name, recording_id, payload, payload_hash
		FROM events
		WHERE recording_id = ?
		ORDER BY seq ASC, id ASC
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanRecords(rows)
}

// Count returns the number of events recorded for a table.
func (j *Journal) Count(ctx context.Context, tableName string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE table_name = ?", tableName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.Seq, &rec.Table, &rec.RecordingID, &payload, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt, err := unmarshalEvent(rec.Seq, payload, rec.Hash)
		if err != nil {
			return nil, err
		}
		rec.Event = evt
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}
