package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// Graph is a set of mounted handlers that queries are matched against.
//
// Handlers are evaluated in mount order; that order breaks ties between
// equally good matches, so it must not change once queries run.
//
// A Graph is not safe for concurrent mutation. Mount everything before
// querying.
type Graph struct {
	handlers []*Handler
	logger   *slog.Logger
	clock    *Clock
	maxDepth int
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithClock sets the logical clock used to stamp queries.
func WithClock(clock *Clock) Option {
	return func(g *Graph) {
		g.clock = clock
	}
}

// WithMaxDepth limits how deeply handlers may nest queries.
//
// Default: 32 (DefaultMaxDepth). Zero disables the limit.
func WithMaxDepth(maxDepth int) Option {
	return func(g *Graph) {
		g.maxDepth = maxDepth
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		logger:   slog.Default(),
		clock:    NewClock(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mount adds handlers after those already mounted.
func (g *Graph) Mount(handlers ...*Handler) {
	g.handlers = append(g.handlers, handlers...)
	for _, h := range handlers {
		g.logger.Debug("handler mounted", "handler", h.Decl())
	}
}

// Handlers returns the mounted handlers in mount order.
func (g *Graph) Handlers() []*Handler {
	return slices.Clone(g.handlers)
}

// FindBestMatch returns the tightest match for q, or no_handler_found.
func (g *Graph) FindBestMatch(q *query.Query) (*Match, *stream.ErrorDetails) {
	return findBestMatch(g.logger, g.handlers, q)
}

// BuildPlan matches q and plans its execution. When nothing matches, the
// plan carries the failure as KnownError.
func (g *Graph) BuildPlan(q *query.Query, verb string) *Plan {
	m, details := g.FindBestMatch(q)
	if details != nil {
		return &Plan{Query: q, Verb: verb, KnownError: details}
	}
	return buildPlan(m, q, verb)
}

// Query runs a get query. Errors arrive as a fail event on the returned
// stream.
func (g *Graph) Query(ctx context.Context, text string, params ir.IRObject) *stream.Stream {
	return g.QueryWithVerb(ctx, VerbGet, text, params)
}

// QueryWithVerb parses, matches, plans and executes a query.
func (g *Graph) QueryWithVerb(ctx context.Context, verb, text string, params ir.IRObject) *stream.Stream {
	q, err := query.Parse(text)
	if err != nil {
		return stream.Failed(stream.NewErrorDetails(stream.ErrTypeParse, "%v", err).
			WithRelated(ir.IRObject{"query": ir.IRString(text)}))
	}

	seq := g.clock.Next()
	out := stream.New()
	g.execute(ctx, g.BuildPlan(q, verb), params, out, seq)
	return out
}
