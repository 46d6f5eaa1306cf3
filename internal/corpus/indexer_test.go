package corpus

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/coverage"
	"github.com/roach88/construct/internal/store"
	"github.com/roach88/construct/internal/testutil"
)

func newTestIndexer(t *testing.T, ws *testutil.Workspace) *Indexer {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "reqs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewIndexer(DefaultLayout(ws.Root), st, nil)
}

// Coverage scenario: one requirement with a test and a code reference, one
// stray id in code.
func TestIndexer_CoverageScenario(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/a.md", "## $REQ_A: Alpha\n**Source:** README.md\nThe alpha behaviour.\n").
		Write("tests/failing/test_01_a.py", "# $REQ_A\n").
		Write("code/main.py", "# $REQ_A\n# $REQ_GONE\n")

	idx, err := newTestIndexer(t, ws).Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, coverage.Untested(idx))
	orphans := coverage.Orphans(idx)
	require.Len(t, orphans, 1)
	assert.Equal(t, "$REQ_GONE", orphans[0].ID)
	assert.Equal(t, "code/main.py:2", orphans[0].Locations[0].String())

	def, ok := idx.Definition("$REQ_A")
	require.True(t, ok)
	assert.Equal(t, "README.md", def.Source)
	assert.Equal(t, "reqs/a.md", def.Origin)
}

func TestIndexer_BuildIsIdempotent(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/b.md", "## $REQ_B: Beta\nb\n").
		Write("reqs/a.md", "## $REQ_A: Alpha\na\n").
		Write("tests/passing/test_01_a.py", "# $REQ_A $REQ_B\n")
	ix := newTestIndexer(t, ws)

	dump := func() []byte {
		_, err := ix.Build(context.Background())
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, ix.Store.Dump(context.Background(), &buf))
		return buf.Bytes()
	}

	assert.Equal(t, dump(), dump())
}

func TestIndexer_DuplicateBeforeDedupe(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/a.md", "## $REQ_A: One\n").
		Write("reqs/b.md", "## $REQ_A: Two\n")
	ix := newTestIndexer(t, ws)

	_, err := ix.Build(context.Background())
	require.Error(t, err)

	_, err = Dedupe(context.Background(), ix.Layout)
	require.NoError(t, err)
	idx, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx.Definitions, 2)
}
