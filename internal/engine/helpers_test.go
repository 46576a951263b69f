package engine

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger returns a logger writing text records to the returned buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newGraph(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	return NewGraph(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func obj(m map[string]any) ir.IRObject {
	return ir.MustFromGo(m).(ir.IRObject)
}

func returning(result any) HandlerFunc {
	return func(*Task) (any, error) { return result, nil }
}

func plan(t *testing.T, g *Graph, text string) *Plan {
	t.Helper()
	return g.BuildPlan(query.MustParse(text), VerbGet)
}

func parseQuery(text string) *query.Query {
	return query.MustParse(text)
}
