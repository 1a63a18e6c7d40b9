package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/spark/snippet"
	"markestedt/spark/snippetio"
)

// runCLI runs the app against the config at cfgPath and returns stdout
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(&out)
	err := app.Run(append([]string{"spark", "--config", cfgPath}, args...))
	return out.String(), err
}

func testConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

func listSnippets(t *testing.T, cfgPath string) []snippet.Snippet {
	t.Helper()
	out, err := runCLI(t, cfgPath, "snippet", "list")
	require.NoError(t, err)
	var snippets []snippet.Snippet
	require.NoError(t, json.Unmarshal([]byte(out), &snippets), out)
	return snippets
}

func TestCLISnippetLifecycle(t *testing.T) {
	cfgPath := testConfigPath(t)

	out, err := runCLI(t, cfgPath, "snippet", "add", "--folder", "Work", "sig", "Best,\nAnna")
	require.NoError(t, err)
	var created snippet.Snippet
	require.NoError(t, json.Unmarshal([]byte(out), &created), out)
	assert.Equal(t, "/sig", created.Shortcut)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.FolderID)

	_, err = runCLI(t, cfgPath, "snippet", "add", "/sig", "again")
	assert.Error(t, err, "duplicate shortcut")

	_, err = runCLI(t, cfgPath, "snippet", "disable", "/sig")
	require.NoError(t, err)
	snippets := listSnippets(t, cfgPath)
	require.Len(t, snippets, 1)
	assert.False(t, snippets[0].IsActive)

	_, err = runCLI(t, cfgPath, "snippet", "enable", "sig")
	require.NoError(t, err)
	assert.True(t, listSnippets(t, cfgPath)[0].IsActive)

	out, err = runCLI(t, cfgPath, "snippet", "list", "--folder", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "/sig")

	out, err = runCLI(t, cfgPath, "snippet", "rm", "/sig")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted /sig")
	assert.Empty(t, listSnippets(t, cfgPath))

	_, err = runCLI(t, cfgPath, "snippet", "rm", "/sig")
	assert.Error(t, err)
}

func TestCLISnippetSearch(t *testing.T) {
	cfgPath := testConfigPath(t)

	_, err := runCLI(t, cfgPath, "snippet", "add", "--name", "Green Color", "/green", "#22c55e")
	require.NoError(t, err)
	_, err = runCLI(t, cfgPath, "snippet", "add", "--name", "Signature", "/sig", "Best")
	require.NoError(t, err)

	out, err := runCLI(t, cfgPath, "snippet", "list", "--search", "color")
	require.NoError(t, err)
	var found []snippet.Snippet
	require.NoError(t, json.Unmarshal([]byte(out), &found), out)
	require.Len(t, found, 1)
	assert.Equal(t, "/green", found[0].Shortcut)

	out, err = runCLI(t, cfgPath, "snippet", "list", "-s", "/SIG")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &found), out)
	require.Len(t, found, 1)
	assert.Equal(t, "/sig", found[0].Shortcut)

	out, err = runCLI(t, cfgPath, "snippet", "list", "--search", "nothing")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestCLIExportImport(t *testing.T) {
	src := testConfigPath(t)
	_, err := runCLI(t, src, "snippet", "add", "--folder", "Colors", "/green", "#22c55e")
	require.NoError(t, err)
	_, err = runCLI(t, src, "snippet", "add", "--disabled", "/addr", "1 Main St")
	require.NoError(t, err)

	pack, err := runCLI(t, src, "export", "-")
	require.NoError(t, err)
	assert.Contains(t, pack, "shortcut: /green")

	packPath := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(packPath, []byte(pack), 0644))

	dst := testConfigPath(t)
	out, err := runCLI(t, dst, "import", packPath)
	require.NoError(t, err)
	var sum snippetio.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, snippetio.Summary{Created: 2}, sum)

	out, err = runCLI(t, dst, "import", packPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, snippetio.Summary{Skipped: 2}, sum)

	snippets := listSnippets(t, dst)
	require.Len(t, snippets, 2)
	byShortcut := map[string]snippet.Snippet{}
	for _, s := range snippets {
		byShortcut[s.Shortcut] = s
	}
	assert.False(t, byShortcut["/addr"].IsActive)
	assert.NotNil(t, byShortcut["/green"].FolderID)
}

func TestCLIImportTextBlaze(t *testing.T) {
	export := `{"folders":[{"name":"Support","snippets":[
		{"name":"Thanks","shortcut":"ty","text":"Thank you!"},
		{"name":"Broken","shortcut":"","text":"no shortcut"}
	]}]}`
	path := filepath.Join(t.TempDir(), "blaze.json")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))

	cfgPath := testConfigPath(t)
	out, err := runCLI(t, cfgPath, "import", "--textblaze", path)
	require.NoError(t, err)
	var sum snippetio.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Created)

	snippets := listSnippets(t, cfgPath)
	require.Len(t, snippets, 1)
	assert.Equal(t, "/ty", snippets[0].Shortcut)
}

func TestCLIRender(t *testing.T) {
	cfgPath := testConfigPath(t)

	out, err := runCLI(t, cfgPath, "render", "answer={{calc:6*7}} {{select:size:S|M|L}}")
	require.NoError(t, err)
	assert.Equal(t, "answer=42 S\n", out)

	_, err = runCLI(t, cfgPath, "snippet", "add", "/sum", "{{calc:1+2}}")
	require.NoError(t, err)
	out, err = runCLI(t, cfgPath, "render", "--shortcut", "/sum")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	_, err = runCLI(t, cfgPath, "render")
	assert.Error(t, err)
}

func TestCLIStats(t *testing.T) {
	cfgPath := testConfigPath(t)

	out, err := runCLI(t, cfgPath, "stats", "--days", "30")
	require.NoError(t, err)
	var stats struct {
		Days    int `json:"days"`
		Overall struct {
			TotalExpansions int `json:"totalExpansions"`
		} `json:"overall"`
		Shortcuts []any `json:"shortcuts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 30, stats.Days)
	assert.Zero(t, stats.Overall.TotalExpansions)
	assert.NotNil(t, stats.Shortcuts)

	_, err = runCLI(t, cfgPath, "stats", "--days", "0")
	assert.Error(t, err)
}
