package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDirMixesCUEAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.cue", `
table: users: {
	attrs: ["id(auto)", "name"]
	funcs: ["get(id)", "listAll"]
}
`)
	writeFile(t, dir, "nested/sessions.yaml", `
tables:
  - name: sessions
    attrs: [token, userId]
    funcs: [get(token), list(userId)]
`)
	writeFile(t, dir, "README.md", "not a spec")

	specs, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, specs, 2)

	// nested/ sorts before users.cue
	assert.Equal(t, "sessions", specs[0].Name)
	assert.Equal(t, "users", specs[1].Name)
	assert.Equal(t, filepath.Join(dir, "users.cue"), specs[1].Source)
}

func TestLoadDirEmpty(t *testing.T) {
	_, errs := LoadDir(t.TempDir())
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoSpecFiles)
}

func TestLoadDirMissing(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "scan")
}

func TestLoadFileCUESyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", "table: users: {\n")

	_, errs := LoadFile(path)
	require.Len(t, errs, 1)
	var ce *CompileError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
}

func TestLoadFilesKeepsGoodSpecs(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.cue", `table: kv: attrs: ["k"]`)
	bad := writeFile(t, dir, "bad.cue", `table: broken: funcs: ["get(k)"]`)

	specs, errs := LoadFiles([]string{good, bad})
	require.Len(t, specs, 1)
	assert.Equal(t, "kv", specs[0].Name)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "table.broken")
}

func TestIsSpecFile(t *testing.T) {
	assert.True(t, IsSpecFile("a.cue"))
	assert.True(t, IsSpecFile("a.YAML"))
	assert.True(t, IsSpecFile("dir/a.yml"))
	assert.False(t, IsSpecFile("a.json"))
}
