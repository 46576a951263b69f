package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/stream"
)

// MatchKind says how one query tag was matched.
type MatchKind string

const (
	MatchExact          MatchKind = "exact"
	MatchPositional     MatchKind = "positional"
	MatchUnusedOptional MatchKind = "unused_optional"
)

// AttrMatch records how the query tag at QueryIndex was matched.
type AttrMatch struct {
	Kind       MatchKind
	QueryIndex int
	QueryAttr  string

	// HandlerAttr is the handler attribute the tag was bound to. Empty
	// for unused optionals.
	HandlerAttr string
}

// Match is a successful match of a query against a handler.
type Match struct {
	Handler *Handler
	Attrs   []AttrMatch

	// UnusedOptionalsCount counts optional query tags the handler does not
	// know. Fewer is a tighter match.
	UnusedOptionalsCount int
}

// ForHandlerAttr returns the match bound to a handler attribute.
func (m *Match) ForHandlerAttr(attr string) (AttrMatch, bool) {
	for _, am := range m.Attrs {
		if am.HandlerAttr == attr {
			return am, true
		}
	}
	return AttrMatch{}, false
}

// FailureReason says why a handler did not match.
type FailureReason string

const (
	FailHandlerDoesntHaveAttr FailureReason = "handler_doesnt_have_attr"
	FailHandlerRequiresValue  FailureReason = "handler_requires_value"
	FailMissingRequiredAttr   FailureReason = "missing_required_attr"
)

// MatchFailure explains a failed match.
type MatchFailure struct {
	Reason FailureReason
	Attr   string
}

// Error implements the error interface.
func (f *MatchFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Attr)
}

// CheckOneMatch matches a query against one handler.
//
// Each query tag with an attribute must be known to the handler, unless
// the tag is optional (counted as an unused optional) or the handler tag
// at the same position is positional. Handler tags that need a value only
// match query tags with a literal or a parameter. Finally every required
// handler tag must have been matched.
func CheckOneMatch(q *query.Query, h *Handler) (*Match, *MatchFailure) {
	m := &Match{Handler: h}
	matched := make(map[string]bool)

	for i, qt := range q.Tags {
		if qt.Attr == "" {
			continue
		}

		ht, ok := h.Tag(qt.Attr)
		if !ok {
			if qt.Optional {
				m.Attrs = append(m.Attrs, AttrMatch{Kind: MatchUnusedOptional, QueryIndex: i, QueryAttr: qt.Attr})
				m.UnusedOptionalsCount++
				continue
			}
			if pt, ok := h.TagAt(i); ok && pt.IsPositional && !matched[pt.Attr] {
				m.Attrs = append(m.Attrs, AttrMatch{Kind: MatchPositional, QueryIndex: i, QueryAttr: qt.Attr, HandlerAttr: pt.Attr})
				matched[pt.Attr] = true
				continue
			}
			return nil, &MatchFailure{Reason: FailHandlerDoesntHaveAttr, Attr: qt.Attr}
		}

		if ht.RequiresValue {
			if _, literal := qt.Literal(); !literal && !qt.IsParameter {
				return nil, &MatchFailure{Reason: FailHandlerRequiresValue, Attr: qt.Attr}
			}
		}
		m.Attrs = append(m.Attrs, AttrMatch{Kind: MatchExact, QueryIndex: i, QueryAttr: qt.Attr, HandlerAttr: ht.Attr})
		matched[ht.Attr] = true
	}

	for _, ht := range h.tags {
		if ht.IsRequired && ht.Attr != TaskAttr && !matched[ht.Attr] {
			return nil, &MatchFailure{Reason: FailMissingRequiredAttr, Attr: ht.Attr}
		}
	}
	return m, nil
}

// findBestMatch evaluates every handler in mount order and returns the
// match with the fewest unused optionals. A tie between the two best is
// logged and resolved in favor of the first mounted.
func findBestMatch(logger *slog.Logger, handlers []*Handler, q *query.Query) (*Match, *stream.ErrorDetails) {
	var candidates []*Match
	for _, h := range handlers {
		if m, fail := CheckOneMatch(q, h); fail == nil {
			candidates = append(candidates, m)
		} else {
			logger.Debug("handler rejected query", "query", q.String(), "handler", h.Decl(), "reason", fail.Reason, "attr", fail.Attr)
		}
	}
	if len(candidates) == 0 {
		return nil, stream.NewErrorDetails(stream.ErrTypeNoHandlerFound, "no handler found for query: %s", q.String()).
			WithRelated(ir.IRObject{"query": ir.IRString(q.String())})
	}

	slices.SortStableFunc(candidates, func(a, b *Match) int {
		return a.UnusedOptionalsCount - b.UnusedOptionalsCount
	})
	if len(candidates) > 1 && candidates[0].UnusedOptionalsCount == candidates[1].UnusedOptionalsCount {
		logger.Warn("ambiguous query match; using first mounted handler",
			"query", q.String(),
			"chosen", candidates[0].Handler.Decl(),
			"also", candidates[1].Handler.Decl())
	}
	return candidates[0], nil
}
