package journal

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/engine"
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/table"
	"github.com/roach88/rqe/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestJournal opens a journal in a temp dir with a deterministic
// clock and recording IDs.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path,
		WithClock(engine.NewClock()),
		WithIDGenerator(testutil.NewSequentialIDs("rec")),
		WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func newTable(t *testing.T, name string, attrs, funcs []string) *table.Table {
	t.Helper()
	s, err := schema.Compile(schema.Decl{Name: name, Attrs: attrs, Funcs: funcs})
	require.NoError(t, err)
	tbl, err := table.New(s, table.WithLogger(quietLogger()), table.WithSuppressUnhandledErrors())
	require.NoError(t, err)
	return tbl
}

func obj(m map[string]any) ir.IRObject {
	return ir.MustFromGo(m).(ir.IRObject)
}
