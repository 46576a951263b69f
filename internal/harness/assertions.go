package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rqe/internal/engine"
	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/journal"
	"github.com/roach88/rqe/internal/table"
)

// AssertionContext is what assertions run against.
type AssertionContext struct {
	Ctx     context.Context
	Tables  map[string]*table.Table
	Graph   *engine.Graph
	Journal *journal.Journal
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	if actx == nil {
		return fmt.Errorf("%s assertion requires an assertion context", a.Type)
	}

	switch a.Type {
	case AssertCount:
		return assertCount(actx, a)
	case AssertItems:
		return assertItems(actx, a)
	case AssertQueryItems:
		return assertQueryItems(actx, a)
	case AssertQueryError:
		return assertQueryError(actx, a)
	case AssertConsistent:
		return assertConsistent(actx, a)
	case AssertMirrorEquals:
		return assertMirrorEquals(actx, a)
	case AssertReplayEquals:
		return assertReplayEquals(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (actx *AssertionContext) table(name string) (*table.Table, error) {
	t, ok := actx.Tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func assertCount(actx *AssertionContext, a Assertion) error {
	t, err := actx.table(a.Table)
	if err != nil {
		return err
	}
	if n := t.Len(); n != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d items in %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d items", n),
		}
	}
	return nil
}

func assertItems(actx *AssertionContext, a Assertion) error {
	t, err := actx.table(a.Table)
	if err != nil {
		return err
	}
	msg, err := compareItems(t.Items(), a.Items)
	if err != nil {
		return err
	}
	if msg != "" {
		return &AssertionError{Type: AssertItems, Expected: "items of " + a.Table, Actual: msg}
	}
	return nil
}

func assertQueryItems(actx *AssertionContext, a Assertion) error {
	params, err := convertArgsToIRObject(a.Params)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	items, details := runQuery(actx.Ctx, actx.Graph, a.Query, params)
	if details != nil {
		return &AssertionError{
			Type:     AssertQueryItems,
			Expected: fmt.Sprintf("query %q to succeed", a.Query),
			Actual:   details.Error(),
		}
	}
	msg, err := compareItems(items, a.Items)
	if err != nil {
		return err
	}
	if msg != "" {
		return &AssertionError{Type: AssertQueryItems, Expected: fmt.Sprintf("items of %q", a.Query), Actual: msg}
	}
	return nil
}

func assertQueryError(actx *AssertionContext, a Assertion) error {
	params, err := convertArgsToIRObject(a.Params)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	items, details := runQuery(actx.Ctx, actx.Graph, a.Query, params)
	if details == nil {
		return &AssertionError{
			Type:     AssertQueryError,
			Expected: fmt.Sprintf("query %q to fail with %s", a.Query, a.Error),
			Actual:   fmt.Sprintf("%d items", len(items)),
		}
	}
	if details.ErrorType != a.Error {
		return &AssertionError{
			Type:     AssertQueryError,
			Expected: fmt.Sprintf("error type %s", a.Error),
			Actual:   details.Error(),
		}
	}
	return nil
}

func assertConsistent(actx *AssertionContext, a Assertion) error {
	t, err := actx.table(a.Table)
	if err != nil {
		return err
	}
	if err := t.CheckConsistency(); err != nil {
		return &AssertionError{
			Type:     AssertConsistent,
			Expected: fmt.Sprintf("indexes of %s to agree", a.Table),
			Actual:   err.Error(),
		}
	}
	return nil
}

func assertMirrorEquals(actx *AssertionContext, a Assertion) error {
	source, err := actx.table(a.Table)
	if err != nil {
		return err
	}
	mirror, err := actx.table(a.Mirror)
	if err != nil {
		return err
	}
	if msg := compareContent(source.Items(), mirror.Items()); msg != "" {
		return &AssertionError{
			Type:     AssertMirrorEquals,
			Expected: fmt.Sprintf("%s to hold the items of %s", a.Mirror, a.Table),
			Actual:   msg,
		}
	}
	return nil
}

// assertReplayEquals replays the journal into a fresh copy of the table
// and compares the result with the live table.
func assertReplayEquals(actx *AssertionContext, a Assertion) error {
	if actx.Journal == nil {
		return fmt.Errorf("replay_equals requires a journal")
	}
	source, err := actx.table(a.Table)
	if err != nil {
		return err
	}
	s, err := source.Schema().WithFuncs("listenToStream")
	if err != nil {
		return err
	}
	dest, err := table.New(s, table.WithSuppressUnhandledErrors())
	if err != nil {
		return err
	}
	if _, err := actx.Journal.Replay(actx.Ctx, a.Table, dest); err != nil {
		return &AssertionError{
			Type:     AssertReplayEquals,
			Expected: fmt.Sprintf("journal of %s to replay", a.Table),
			Actual:   err.Error(),
		}
	}
	if msg := compareContent(source.Items(), dest.Items()); msg != "" {
		return &AssertionError{
			Type:     AssertReplayEquals,
			Expected: fmt.Sprintf("replayed %s to match the table", a.Table),
			Actual:   msg,
		}
	}
	return nil
}

// compareItems checks actual against expected in order. It returns a
// description of the first difference, or "" when they match.
func compareItems(actual []ir.IRObject, expected []map[string]any) (string, error) {
	want := make([]ir.IRObject, len(expected))
	for i, e := range expected {
		obj, err := convertArgsToIRObject(e)
		if err != nil {
			return "", fmt.Errorf("items[%d]: %w", i, err)
		}
		want[i] = obj
	}

	if len(actual) != len(want) {
		return fmt.Sprintf("%d items, expected %d: %s", len(actual), len(want), ir.MustCanonical(itemsIR(actual))), nil
	}
	for i := range want {
		if !ir.Equal(actual[i], want[i]) {
			return fmt.Sprintf("item %d is %s, expected %s",
				i, ir.MustCanonical(actual[i]), ir.MustCanonical(want[i])), nil
		}
	}
	return "", nil
}

// compareContent compares two item sets ignoring order.
func compareContent(a, b []ir.IRObject) string {
	canon := func(items []ir.IRObject) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = ir.MustCanonical(item)
		}
		slices.Sort(out)
		return out
	}
	ca, cb := canon(a), canon(b)
	if slices.Equal(ca, cb) {
		return ""
	}
	return fmt.Sprintf("%v vs %v", ca, cb)
}
