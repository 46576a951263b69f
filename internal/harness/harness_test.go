package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
	"github.com/roach88/rqe/internal/journal"
)

// usersScenario returns a scenario over one inline users table.
func usersScenario(name string, steps []Step, assertions []Assertion) *Scenario {
	return &Scenario{
		Name:        name,
		Description: "users " + name,
		Tables: []TableDecl{
			{
				Name:  "users",
				Attrs: []string{"id(auto)", "name", "role"},
				Funcs: []string{"get(id)", "list(role)", "update(id)", "listAll", "listen"},
				Initial: []map[string]any{
					{"name": "ada", "role": "admin"},
				},
			},
			{
				Name:  "users_copy",
				Attrs: []string{"id", "name", "role"},
				Funcs: []string{"get(id)", "delete(id)", "listenToStream"},
			},
		},
		Steps:      steps,
		Assertions: assertions,
	}
}

func TestRun_InsertAndCount(t *testing.T) {
	scenario := usersScenario("insert", []Step{
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 2},
		{Type: AssertItems, Table: "users", Items: []map[string]any{
			{"id": 1, "name": "ada", "role": "admin"},
			{"id": 2, "name": "bob", "role": "dev"},
		}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	step := result.Trace[0]
	assert.Equal(t, KindStep, step.Kind)
	assert.Equal(t, OpInsert, step.Op)
	assert.Equal(t, "users", step.Table)
	assert.Equal(t, ir.IRInt(2), step.Detail["item"].(ir.IRObject)["id"], "trace shows the assigned id")
}

func TestRun_DeleteUpdateAndQuery(t *testing.T) {
	scenario := usersScenario("mutations", []Step{
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "cy", "role": "dev"}},
		{Op: OpUpdate, Table: "users", Func: "update_with_id", Args: []any{1}, Set: map[string]any{"role": "owner"}},
		{Op: OpDelete, Table: "users", Func: "delete_with_role", Args: []any{"dev"}, Error: "does not support"},
		{Op: OpQuery, Query: "users role=dev name", Expect: []map[string]any{
			{"users": nil, "role": "dev", "name": "bob"},
			{"users": nil, "role": "dev", "name": "cy"},
		}},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 3},
		{Type: AssertQueryItems, Query: "users id=1 role", Items: []map[string]any{
			{"users": nil, "id": 1, "role": "owner"},
		}},
		{Type: AssertConsistent, Table: "users"},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 5)
	update := result.Trace[2].Detail
	assert.Equal(t, ir.IRString("update_with_id"), update["func"])
	assert.Equal(t, ir.IRInt(1), update["updated"])

	del := result.Trace[3].Detail
	assert.Contains(t, string(del["error"].(ir.IRString)), "does not support")
	assert.Equal(t, ir.IRInt(0), del["deleted"])

	query := result.Trace[4].Detail
	assert.Len(t, query["items"], 2)
}

func TestRun_UpdateDefaultsToEveryItem(t *testing.T) {
	scenario := usersScenario("update_all", []Step{
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
		{Op: OpUpdate, Table: "users", Set: map[string]any{"role": "guest"}},
	}, []Assertion{
		{Type: AssertQueryItems, Query: "users role=guest name", Items: []map[string]any{
			{"users": nil, "role": "guest", "name": "ada"},
			{"users": nil, "role": "guest", "name": "bob"},
		}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.IRString("update"), result.Trace[1].Detail["func"])
	assert.Equal(t, ir.IRInt(2), result.Trace[1].Detail["updated"])
}

func TestRun_ExpectedErrors(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		wantPass bool
		wantErr  string
	}{
		{
			name:     "query error type matches",
			step:     Step{Op: OpQuery, Query: "orders id=1", Error: "no_handler_found"},
			wantPass: true,
		},
		{
			name:    "query error type differs",
			step:    Step{Op: OpQuery, Query: "orders id=1", Error: "parse_error"},
			wantErr: `expected error "parse_error"`,
		},
		{
			name:    "expected error but succeeded",
			step:    Step{Op: OpQuery, Query: "users id=1 name", Error: "no_handler_found"},
			wantErr: "got none",
		},
		{
			name:    "unexpected failure",
			step:    Step{Op: OpDelete, Table: "users", Func: "delete_with_name", Args: []any{"ada"}},
			wantErr: "does not support",
		},
		{
			name:     "failure substring matches",
			step:     Step{Op: OpListen, Table: "users_copy", Error: "listen"},
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := usersScenario("errors", []Step{tt.step}, []Assertion{
				{Type: AssertCount, Table: "users", Count: 1},
			})
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, result.Pass, "errors: %v", result.Errors)
			if tt.wantErr != "" {
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], tt.wantErr)
			}
		})
	}
}

func TestRun_QueryExpectMismatch(t *testing.T) {
	scenario := usersScenario("expect", []Step{
		{Op: OpQuery, Query: "users id=1 name", Expect: []map[string]any{
			{"users": nil, "id": 1, "name": "bob"},
		}},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 1},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `steps[0] query "users id=1 name"`)
	assert.Contains(t, result.Errors[0], `"name":"ada"`)
}

func TestRun_ListenRecordsEvents(t *testing.T) {
	scenario := usersScenario("listen", []Step{
		{Op: OpListen, Table: "users", InitialData: true},
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
	}, []Assertion{
		{Type: AssertReplayEquals, Table: "users"},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var kinds []string
	for _, e := range result.Trace {
		if e.Kind == KindStep {
			kinds = append(kinds, e.Op)
			continue
		}
		assert.Equal(t, "recording-1", e.Listener)
		kinds = append(kinds, string(e.Detail["t"].(ir.IRString)))
	}
	assert.Equal(t, []string{"listen", "schema", "restart", "item", "insert", "item"}, kinds)

	for i := 1; i < len(result.Trace); i++ {
		assert.Less(t, result.Trace[i-1].Seq, result.Trace[i].Seq, "trace is in seq order")
	}
}

func TestRun_Mirror(t *testing.T) {
	scenario := usersScenario("mirror", []Step{
		{Op: OpMirror, Table: "users", Into: "users_copy", InitialData: true},
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
		{Op: OpUpdate, Table: "users", Func: "update_with_id", Args: []any{2}, Set: map[string]any{"name": "rob"}},
	}, []Assertion{
		{Type: AssertMirrorEquals, Table: "users", Mirror: "users_copy"},
		{Type: AssertCount, Table: "users_copy", Count: 2},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.IRString("users_copy"), result.Trace[0].Detail["into"])
}

func TestRun_MirrorSchemaMismatchIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "mirror lacking the source's delete function",
		Tables: []TableDecl{
			{Name: "src", Attrs: []string{"a", "b"}, Funcs: []string{"get(a)", "delete(b)", "listen"}},
			{Name: "dst", Attrs: []string{"a", "b"}, Funcs: []string{"get(a)", "listenToStream"}},
		},
		Steps: []Step{
			{Op: OpMirror, Table: "src", Into: "dst", DeletionIndex: "b"},
		},
		Assertions: []Assertion{
			{Type: AssertCount, Table: "dst", Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unhandled")
	assert.Contains(t, result.Errors[0], "delete(b)")
}

func TestRun_State(t *testing.T) {
	scenario := usersScenario("state", []Step{
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 2},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Contains(t, result.State, "users")
	require.Contains(t, result.State, "users_copy")
	assert.Len(t, result.State["users"], 2)
	assert.Empty(t, result.State["users_copy"])
	assert.Equal(t, `[{"id":1,"name":"ada","role":"admin"},{"id":2,"name":"bob","role":"dev"}]`,
		ir.MustCanonical(result.State["users"]))
}

func TestRun_Deterministic(t *testing.T) {
	scenario := usersScenario("deterministic", []Step{
		{Op: OpListen, Table: "users", InitialData: true},
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
		{Op: OpUpdate, Table: "users", Func: "update_with_id", Args: []any{1}, Set: map[string]any{"role": "owner"}},
		{Op: OpQuery, Query: "users role=dev name"},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 2},
	})

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first.Trace)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "same scenario must produce the same trace")
}

func TestRun_FreshTablesPerRun(t *testing.T) {
	scenario := usersScenario("fresh", []Step{
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 2},
	})

	for range 3 {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}
}

func TestRun_CannotRun(t *testing.T) {
	tests := []struct {
		name     string
		scenario *Scenario
		wantErr  string
	}{
		{
			name:     "unknown table",
			scenario: usersScenario("unknown", []Step{{Op: OpListen, Table: "orders"}}, nil),
			wantErr:  `unknown table "orders"`,
		},
		{
			name:     "unknown mirror target",
			scenario: usersScenario("unknown", []Step{{Op: OpMirror, Table: "users", Into: "orders"}}, nil),
			wantErr:  `unknown table "orders"`,
		},
		{
			name: "fractional number",
			scenario: usersScenario("float", []Step{
				{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "score": 1.5}},
			}, nil),
			wantErr: `field "score"`,
		},
		{
			name: "invalid table spec",
			scenario: &Scenario{
				Name:   "bad",
				Tables: []TableDecl{{Name: "t", Attrs: []string{"a"}, Funcs: []string{"get(missing)"}}},
				Steps:  []Step{{Op: OpListen, Table: "t"}},
			},
			wantErr: "invalid table specs",
		},
		{
			name: "missing spec file",
			scenario: &Scenario{
				Name:  "missing",
				Specs: []string{"/does/not/exist.cue"},
				Steps: []Step{{Op: OpListen, Table: "t"}},
			},
			wantErr: "failed to load specs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	scenario := usersScenario("logged", []Step{
		{Op: OpQuery, Query: "users id=1 name"},
	}, []Assertion{
		{Type: AssertCount, Table: "users", Count: 1},
	})

	_, err := Run(scenario, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario finished")
	assert.Contains(t, buf.String(), "scenario=logged")
}

func TestRun_WithJournalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	scenario := usersScenario("journaled", []Step{
		{Op: OpListen, Table: "users", InitialData: true},
		{Op: OpInsert, Table: "users", Item: map[string]any{"name": "bob", "role": "dev"}},
	}, nil)

	result, err := Run(scenario, WithJournalPath(path))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.Count(t.Context(), "users")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "schema, restart, ada and bob")

	rec, ok, err := j.Table(t.Context(), "users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "users", rec.Decl.Name)
}

func TestConvertArgsToIRObject(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    ir.IRObject
		wantErr bool
	}{
		{name: "nil map", input: nil, want: ir.IRObject{}},
		{
			name:  "scalars",
			input: map[string]any{"s": "x", "i": 42, "b": true, "n": nil},
			want:  ir.IRObject{"s": ir.IRString("x"), "i": ir.IRInt(42), "b": ir.IRBool(true), "n": ir.IRNull{}},
		},
		{
			name:  "integral float",
			input: map[string]any{"f": 3.0},
			want:  ir.IRObject{"f": ir.IRInt(3)},
		},
		{
			name:  "nested",
			input: map[string]any{"tags": []any{"a", 1}, "meta": map[string]any{"k": "v"}},
			want: ir.IRObject{
				"tags": ir.IRArray{ir.IRString("a"), ir.IRInt(1)},
				"meta": ir.IRObject{"k": ir.IRString("v")},
			},
		},
		{name: "fractional float", input: map[string]any{"f": 0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertArgsToIRObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s", ir.MustCanonical(got))
		})
	}
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("first")
	result.AddError("second")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"first", "second"}, result.Errors)
}

func TestResult_AddTrace(t *testing.T) {
	result := NewResult()
	result.AddStepTrace(1, OpInsert, "users", ir.IRObject{"item": ir.IRObject{}})
	result.AddEventTrace(2, "users", "recording-1", ir.IRObject{"t": ir.IRString("item")})

	require.Len(t, result.Trace, 2)
	assert.Equal(t, KindStep, result.Trace[0].Kind)
	assert.Equal(t, OpInsert, result.Trace[0].Op)
	assert.Empty(t, result.Trace[0].Listener)
	assert.Equal(t, KindEvent, result.Trace[1].Kind)
	assert.Equal(t, "recording-1", result.Trace[1].Listener)
	assert.Empty(t, result.Trace[1].Op)
}
