package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
)

// newUsers returns a listenable table holding ada and bob.
func newUsers(t *testing.T) *table.Table {
	t.Helper()
	users := newTable(t, "users", []string{"id(auto)", "name"}, []string{"get(id)", "update(id)", "listAll", "listen", "diff"})
	for _, name := range []string{"ada", "bob"} {
		_, err := users.Insert(obj(map[string]any{"name": name}))
		require.NoError(t, err)
	}
	return users
}

// mutateUsers inserts cy, renames ada and deletes bob.
func mutateUsers(t *testing.T, users *table.Table) {
	t.Helper()
	_, err := users.Insert(obj(map[string]any{"name": "cy"}))
	require.NoError(t, err)
	_, err = users.Update("update_with_id", []ir.IRValue{ir.IRInt(1)}, func(item ir.IRObject) ir.IRObject {
		item["name"] = ir.IRString("ada lovelace")
		return nil
	})
	require.NoError(t, err)
	_, err = users.Delete("delete_with_id", ir.IRInt(2))
	require.NoError(t, err)
}

func TestAttachRecordsListenerStream(t *testing.T) {
	j := createTestJournal(t)
	users := newUsers(t)

	rec, err := j.Attach(t.Context(), users, table.ListenOptions{GetInitialData: true})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "users", rec.Table)
	assert.True(t, rec.Active())

	mutateUsers(t, users)

	records, err := j.RecordingEvents(t.Context(), rec.ID)
	require.NoError(t, err)

	types := make([]stream.EventType, len(records))
	for i, r := range records {
		types[i] = r.Event.Type
	}
	assert.Equal(t, []stream.EventType{
		stream.TypeSchema, stream.TypeRestart,
		stream.TypeItem, stream.TypeItem,
		stream.TypeItem,
		stream.TypeDelta, stream.TypeItem,
		stream.TypeDelta,
	}, types)
	assert.Equal(t, 8, rec.Count())
	assert.Equal(t, []string{"delete(id)"}, records[0].Event.Schema.Funcs)
	assert.Equal(t, ir.IRArray{ir.IRInt(2)}, records[7].Event.Params)

	// registration took seq 1
	assert.Equal(t, int64(2), records[0].Seq)
	assert.Equal(t, int64(9), records[7].Seq)
	require.NoError(t, rec.Err())
}

func TestRecordingStop(t *testing.T) {
	j := createTestJournal(t)
	users := newUsers(t)

	rec, err := j.Attach(t.Context(), users, table.ListenOptions{})
	require.NoError(t, err)
	rec.Stop()
	assert.False(t, rec.Active())

	_, err = users.Insert(obj(map[string]any{"name": "dan"}))
	require.NoError(t, err)

	n, err := j.Count(t.Context(), "users")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "schema and restart only")
	assert.Zero(t, users.ListenerCount())
}

func TestAttachRequiresListen(t *testing.T) {
	j := createTestJournal(t)
	plain := newTable(t, "plain", []string{"k"}, []string{"get(k)"})

	_, err := j.Attach(t.Context(), plain, table.ListenOptions{})
	assert.Error(t, err)
}

func TestAttachStopsOnAppendFailure(t *testing.T) {
	j := createTestJournal(t)
	users := newUsers(t)

	rec, err := j.Attach(t.Context(), users, table.ListenOptions{})
	require.NoError(t, err)

	// Closing the database makes every later append fail.
	require.NoError(t, j.Close())
	_, err = users.Insert(obj(map[string]any{"name": "dan"}))
	require.NoError(t, err, "the source table is unaffected")

	assert.Error(t, rec.Err())
	assert.False(t, rec.Active())
	assert.Zero(t, users.ListenerCount())
}
