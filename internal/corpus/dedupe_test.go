package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/testutil"
)

func TestDedupe_FirstOccurrenceKeepsID(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/b.md", "## $REQ_X: Second\ntext b\n").
		Write("reqs/a.md", "## $REQ_X: First\ntext a\n")

	renames, err := Dedupe(context.Background(), DefaultLayout(ws.Root))
	require.NoError(t, err)

	require.Len(t, renames, 1)
	assert.Equal(t, Rename{Path: "reqs/b.md", Line: 1, From: "$REQ_X", To: "$REQ_X_2"}, renames[0])
	assert.Equal(t, "## $REQ_X: First\ntext a\n", ws.Read("reqs/a.md"))
	assert.Equal(t, "## $REQ_X_2: Second\ntext b\n", ws.Read("reqs/b.md"))
}

func TestDedupe_SkipsSuffixesInUse(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/a.md", "## $REQ_X: One\n\n## $REQ_X_2: Taken\n\n## $REQ_X: Three\n").
		Write("reqs/c.md", "## $REQ_X: Four\n")

	renames, err := Dedupe(context.Background(), DefaultLayout(ws.Root))
	require.NoError(t, err)

	require.Len(t, renames, 2)
	assert.Equal(t, "$REQ_X_3", renames[0].To)
	assert.Equal(t, 5, renames[0].Line)
	assert.Equal(t, "$REQ_X_4", renames[1].To)
	assert.Equal(t, "reqs/c.md", renames[1].Path)
	assert.Equal(t, "## $REQ_X: One\n\n## $REQ_X_2: Taken\n\n## $REQ_X_3: Three\n", ws.Read("reqs/a.md"))
}

func TestDedupe_IdempotentOnUniqueCorpus(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/a.md", "## $REQ_A: A\r\nmentions $REQ_A: again\r\n")
	l := DefaultLayout(ws.Root)

	before, err := Fingerprint(l)
	require.NoError(t, err)

	renames, err := Dedupe(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, renames)

	after, err := Fingerprint(l)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDedupe_PreservesLineEndings(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("reqs/a.md", "## $REQ_A: A\r\n").
		Write("reqs/b.md", "## $REQ_A: B\r\nbody\r\n")

	_, err := Dedupe(context.Background(), DefaultLayout(ws.Root))
	require.NoError(t, err)
	assert.Equal(t, "## $REQ_A_2: B\r\nbody\r\n", ws.Read("reqs/b.md"))
}
