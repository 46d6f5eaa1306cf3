package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/testutil"
)

func indexWorkspace(t *testing.T) *testutil.Workspace {
	return testutil.NewWorkspace(t).
		Write("reqs/core.md", "## $REQ_A: Alpha\n**Source:** README.md\nDo alpha.\n\n## $REQ_B: Beta\nDo beta.\n").
		Write("tests/failing/test_01_a.py", "# $REQ_A\n").
		Write("code/main.py", "# $REQ_A $REQ_GONE\n")
}

func TestIndexCommandText(t *testing.T) {
	ws := indexWorkspace(t)
	opts := &RootOptions{Workspace: ws.Root}

	res := execute(t, opts, NewIndexCommand(opts), "")
	require.NoError(t, res.err)

	assert.Contains(t, res.out, "Index: tmp/reqs.sqlite\n")
	assert.Contains(t, res.out, "  definitions: 2\n")
	assert.Contains(t, res.out, "  docs locations: 2\n")
	assert.Contains(t, res.out, "  tests locations: 1\n")
	assert.Contains(t, res.out, "  code locations: 2\n")
	assert.Contains(t, res.out, "  orphans: 1\n    - $REQ_GONE\n")
	assert.Contains(t, res.out, "  untested: 1\n    - $REQ_B\n")
}

func TestIndexCommandJSON(t *testing.T) {
	ws := indexWorkspace(t)
	opts := &RootOptions{Workspace: ws.Root, Format: "json"}

	res := execute(t, opts, NewIndexCommand(opts), "")
	require.NoError(t, res.err)

	var resp struct {
		Status string       `json:"status"`
		Data   IndexSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &resp))
	assert.Equal(t, 2, resp.Data.Definitions)
	assert.Equal(t, map[string]int{"docs": 2, "tests": 1, "code": 2}, resp.Data.Locations)
	assert.Equal(t, []string{"$REQ_GONE"}, resp.Data.Orphans)
	assert.Equal(t, []string{"$REQ_B"}, resp.Data.Untested)
}

func TestIndexCommandDumpIsStable(t *testing.T) {
	ws := indexWorkspace(t)
	opts := &RootOptions{Workspace: ws.Root}

	first := execute(t, opts, NewIndexCommand(opts), "", "--dump")
	require.NoError(t, first.err)
	second := execute(t, opts, NewIndexCommand(opts), "", "--dump")
	require.NoError(t, second.err)

	assert.Equal(t, first.out, second.out)
	lines := strings.Split(strings.TrimSpace(first.out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], `"table":"req_definitions"`)
	assert.Contains(t, lines[0], `"req_id":"$REQ_A"`)
	assert.Contains(t, lines[6], `"table":"req_locations"`)
}

func TestIndexCommandMissingWorkspace(t *testing.T) {
	opts := &RootOptions{Workspace: "/nonexistent/workspace"}

	res := execute(t, opts, NewIndexCommand(opts), "")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "workspace not found")
}

func TestIndexCommandBadConfig(t *testing.T) {
	ws := indexWorkspace(t).Write("construct.yaml", "agent: gpt\n")
	opts := &RootOptions{Workspace: ws.Root}

	res := execute(t, opts, NewIndexCommand(opts), "")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "failed to load config")
}
