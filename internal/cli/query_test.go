package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rqe/internal/ir"
)

func runQueryCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewQueryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueryText(t *testing.T) {
	out, err := runQueryCmd(t, "text", testSpecsDir, "users id=1 name")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"ada","users":null}`+"\n", out)
}

func TestQueryWithParams(t *testing.T) {
	out, err := runQueryCmd(t, "json", testSpecsDir, "users id=$who name role", "who=1")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Query  string           `json:"query"`
			Params map[string]any   `json:"params"`
			Items  []map[string]any `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "users id=$who name role", resp.Data.Query)
	assert.EqualValues(t, 1, resp.Data.Params["who"])
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "ada", resp.Data.Items[0]["name"])
	assert.Equal(t, "admin", resp.Data.Items[0]["role"])
}

func TestQueryFailures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{
			name:     "no handler",
			args:     []string{testSpecsDir, "orders id=1"},
			wantExit: ExitFailure,
			wantCode: "no_handler_found",
		},
		{
			name:     "missing parameter",
			args:     []string{testSpecsDir, "users id=$who name"},
			wantExit: ExitFailure,
			wantCode: "missing_parameter",
		},
		{
			name:     "syntax error",
			args:     []string{testSpecsDir, "users id=("},
			wantExit: ExitFailure,
			wantCode: "parse_error",
		},
		{
			name:     "malformed parameter",
			args:     []string{testSpecsDir, "users id=$who name", "who"},
			wantExit: ExitCommandError,
			wantCode: ErrCodeGeneric,
		},
		{
			name:     "missing specs",
			args:     []string{"/nonexistent/specs", "users id=1 name"},
			wantExit: ExitCommandError,
			wantCode: ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runQueryCmd(t, "json", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestQueryBuildFailure(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "users.cue", "table: users: {\n\tattrs: [\"id\", \"id\"]\n}\n")

	out, err := runQueryCmd(t, "json", dir, "users id=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeBuildFailed, decodeResponse(t, out).Error.Code)
}

func TestQueryExplain(t *testing.T) {
	out, err := runQueryCmd(t, "json", testSpecsDir, "users id=1 name", "--explain")
	require.NoError(t, err)

	var resp struct {
		Data PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	assert.Equal(t, "users id=1 name", resp.Data.Query)
	assert.Equal(t, "users $id -> name role", resp.Data.Handler)
	assert.Contains(t, resp.Data.Inputs, PlanInput{Attr: "id", Source: "literal", Value: "1"})
	assert.Contains(t, resp.Data.Outputs, "name")
}

func TestQueryExplainText(t *testing.T) {
	out, err := runQueryCmd(t, "text", testSpecsDir, "users id=$who name", "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, "handler: users $id -> name role")
	assert.Contains(t, out, "input id <- param $who")
}

func TestQueryExplainNoHandler(t *testing.T) {
	_, err := runQueryCmd(t, "text", testSpecsDir, "orders id=1", "--explain")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"id=2", "name=ada", "quoted=\"two words\"", "on=true"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"id":     ir.IRInt(2),
		"name":   ir.IRString("ada"),
		"quoted": ir.IRString("two words"),
		"on":     ir.IRBool(true),
	}, params)

	empty, err := ParseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"id", "=1", "id=$x", "id=(a)"} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseParams([]string{bad})
			assert.Error(t, err)
		})
	}
}
