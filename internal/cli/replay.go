package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/journal"
	"github.com/roach88/rqe/internal/query"
	"github.com/roach88/rqe/internal/schema"
	"github.com/roach88/rqe/internal/stream"
	"github.com/roach88/rqe/internal/table"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	Rebuild bool     // replay into fresh tables instead of listing events
	Where   string   // item filter, e.g. "role=dev"
	Types   []string // event types to list
}

// JournalTable summarizes one journaled table.
type JournalTable struct {
	Name          string `json:"name"`
	SchemaHash    string `json:"schema_hash"`
	RegisteredSeq int64  `json:"registered_seq"`
	Events        int    `json:"events"`
}

// JournalEvent is one journaled event.
type JournalEvent struct {
	Seq       int64       `json:"seq"`
	Recording string      `json:"recording"`
	Event     ir.IRObject `json:"event"`
}

// RebuildResult holds the items a replay rebuilt.
type RebuildResult struct {
	Table         string     `json:"table"`
	Events        int        `json:"events"`
	Deterministic bool       `json:"deterministic"`
	Items         ir.IRArray `json:"items"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [table]",
		Short: "Inspect or replay a journal",
		Long: `Inspect a journal written by "rqe test --journal-dir".

Without a table, lists the journaled tables. With a table, prints its
events in seq order, optionally filtered by item attributes (--where)
or event type (--type). With --rebuild, compiles the journaled declaration,
replays the events twice into fresh tables, checks both agree and
prints the rebuilt items.

The journal path defaults to the "journal" config key.

Exit codes:
  0 - Success
  1 - Replay failed or was not deterministic
  2 - Command error (journal or table not found, etc.)

Examples:
  rqe replay --journal ./journals/users_mirror.db
  rqe replay users --journal ./journals/users_mirror.db
  rqe replay users --journal ./journals/users_mirror.db --where 'role=dev'
  rqe replay users --journal ./journals/users_mirror.db --type delta
  rqe replay users --journal ./journals/users_mirror.db --rebuild`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.Journal == "" && opts.Config != nil {
				opts.Journal = opts.Config.Journal
			}
			if len(args) == 0 {
				return runListTables(ctx, opts, cmd)
			}
			return runReplay(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal (default from config)")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "replay into fresh tables and print their items")
	cmd.Flags().StringVar(&opts.Where, "where", "", `only events whose item matches, e.g. "role=dev"`)
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "only events of these types (schema, restart, item, delta, done, fail)")

	return cmd
}

// openJournal opens an existing journal. Opening a missing path would
// create an empty database, so that case is an error.
func openJournal(opts *ReplayOptions) (*journal.Journal, error) {
	if opts.Journal == "" {
		return nil, NewExitError(ExitCommandError, "no journal given: use --journal or the journal config key")
	}
	if _, err := os.Stat(opts.Journal); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Journal, journal.WithLogger(opts.logger()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runListTables(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	j, err := openJournal(opts)
	if err != nil {
		return outputReplayError(formatter, err)
	}
	defer j.Close()

	records, err := j.Tables(ctx)
	if err != nil {
		return outputReplayError(formatter, WrapExitError(ExitCommandError, "failed to read tables", err))
	}
	tables := make([]JournalTable, 0, len(records))
	for _, rec := range records {
		n, err := j.Count(ctx, rec.Name)
		if err != nil {
			return outputReplayError(formatter, WrapExitError(ExitCommandError, "failed to count events", err))
		}
		tables = append(tables, JournalTable{
			Name:          rec.Name,
			SchemaHash:    rec.SchemaHash,
			RegisteredSeq: rec.RegisteredSeq,
			Events:        n,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(tables)
	}
	w := formatter.Writer
	if len(tables) == 0 {
		fmt.Fprintln(w, "No tables found in journal.")
		return nil
	}
	for _, t := range tables {
		fmt.Fprintf(w, "%s\t%d event(s)\tschema %s\n", t.Name, t.Events, shortHash(t.SchemaHash))
	}
	return nil
}

func runReplay(ctx context.Context, opts *ReplayOptions, tableName string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	j, err := openJournal(opts)
	if err != nil {
		return outputReplayError(formatter, err)
	}
	defer j.Close()

	rec, ok, err := j.Table(ctx, tableName)
	if err != nil {
		return outputReplayError(formatter, WrapExitError(ExitCommandError, "failed to read table", err))
	}
	if !ok {
		return outputReplayError(formatter, NewExitError(ExitCommandError, fmt.Sprintf("table %q is not in the journal", tableName)))
	}

	if opts.Rebuild {
		return runRebuild(ctx, opts, formatter, j, rec)
	}

	filter, err := opts.filter()
	if err != nil {
		return outputReplayError(formatter, err)
	}
	records, err := j.Find(ctx, tableName, filter)
	if err != nil {
		return outputReplayError(formatter, WrapExitError(ExitFailure, "failed to read events", err))
	}
	events := make([]JournalEvent, len(records))
	for i, r := range records {
		events[i] = JournalEvent{Seq: r.Seq, Recording: r.RecordingID, Event: r.Event.ToIR()}
	}

	if formatter.Format == "json" {
		return formatter.Success(events)
	}
	w := formatter.Writer
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.Seq, e.Recording, ir.MustCanonical(e.Event))
	}
	formatter.VerboseLog("%d event(s)", len(events))
	return nil
}

// filter builds the event filter from --where and --type. It is nil when
// neither is set.
func (opts *ReplayOptions) filter() (journal.Predicate, error) {
	var and journal.And
	if opts.Where != "" {
		q, err := query.Parse(opts.Where)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --where", err)
		}
		p, err := journal.ItemWhere(q)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --where", err)
		}
		and.Predicates = append(and.Predicates, p)
	}
	if len(opts.Types) > 0 {
		types := make([]stream.EventType, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = stream.EventType(t)
			if !slices.Contains(eventTypes, types[i]) {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --type %q: must be one of %v", t, eventTypes))
			}
		}
		and.Predicates = append(and.Predicates, journal.TypeIs{Types: types})
	}
	if len(and.Predicates) == 0 {
		return nil, nil
	}
	return and, nil
}

var eventTypes = []stream.EventType{
	stream.TypeSchema, stream.TypeRestart, stream.TypeItem,
	stream.TypeDelta, stream.TypeDone, stream.TypeFail,
}

// runRebuild replays the journal twice and compares the results.
func runRebuild(ctx context.Context, opts *ReplayOptions, formatter *OutputFormatter, j *journal.Journal, rec journal.TableRecord) error {
	rebuild := func() ([]string, ir.IRArray, int, error) {
		s, err := schema.Compile(rec.Decl)
		if err != nil {
			return nil, nil, 0, err
		}
		if s, err = s.WithFuncs("listenToStream"); err != nil {
			return nil, nil, 0, err
		}
		dest, err := table.New(s, table.WithLogger(opts.logger()), table.WithSuppressUnhandledErrors())
		if err != nil {
			return nil, nil, 0, err
		}
		n, err := j.Replay(ctx, rec.Name, dest)
		if err != nil {
			return nil, nil, n, err
		}
		items := dest.Items()
		canon := make([]string, len(items))
		arr := make(ir.IRArray, len(items))
		for i, item := range items {
			canon[i] = ir.MustCanonical(item)
			arr[i] = item
		}
		return canon, arr, n, nil
	}

	first, items, n, err := rebuild()
	if err != nil {
		return outputReplayError(formatter, WrapExitError(ExitFailure, "first replay failed", err))
	}
	second, _, _, err := rebuild()
	if err != nil {
		return outputReplayError(formatter, WrapExitError(ExitFailure, "second replay failed", err))
	}

	result := RebuildResult{
		Table:         rec.Name,
		Events:        n,
		Deterministic: slices.Equal(first, second),
		Items:         items,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, line := range first {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "Replayed %d event(s) into %s: %d item(s)\n", n, rec.Name, len(items))
	}

	if !result.Deterministic {
		if formatter.Format != "json" {
			fmt.Fprintln(formatter.Writer, "✗ Replays disagree")
		}
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	return nil
}

func outputReplayError(formatter *OutputFormatter, err error) error {
	code := ErrCodeJournal
	if GetExitCode(err) == ExitFailure {
		code = ErrCodeQueryFailed
	}
	_ = formatter.Error(code, err.Error(), nil)
	return err
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
