package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/ir"
)

func TestRebuild_ReplacesContents(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defs, locs := fixtureRows()

	require.NoError(t, s.Rebuild(ctx, defs, locs))
	require.NoError(t, s.Rebuild(ctx, defs[:1], nil))

	got, err := s.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "$REQ_B", got[0].ID)

	gotLocs, err := s.Locations(ctx)
	require.NoError(t, err)
	assert.Empty(t, gotLocs)
}

func TestRebuild_IdempotentDump(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defs, locs := fixtureRows()

	require.NoError(t, s.Rebuild(ctx, defs, locs))
	var first bytes.Buffer
	require.NoError(t, s.Dump(ctx, &first))

	// Same rows in a different order must produce the same bytes.
	reversed := []ir.RequirementLocation{locs[3], locs[2], locs[1], locs[0]}
	require.NoError(t, s.Rebuild(ctx, defs, reversed))
	var second bytes.Buffer
	require.NoError(t, s.Dump(ctx, &second))

	assert.Equal(t, first.String(), second.String())
}

func TestRebuild_DuplicateDefinition(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defs, locs := fixtureRows()
	require.NoError(t, s.Rebuild(ctx, defs, locs))

	dup := append(defs, ir.RequirementDefinition{ID: "$REQ_A", Text: "again", Origin: "reqs/b.md"})
	err := s.Rebuild(ctx, dup, nil)
	require.Error(t, err)

	var dupErr *ir.DuplicateIDError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "$REQ_A", dupErr.ID)

	// Failed rebuild leaves the previous contents.
	n, err := s.CountDefinitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defs, locs := fixtureRows()
	require.NoError(t, s.Rebuild(ctx, defs, locs))

	idx, err := s.Snapshot(ctx)
	require.NoError(t, err)

	d, ok := idx.Definition("$REQ_A")
	require.True(t, ok)
	assert.Equal(t, "README.md", d.Source)
	assert.Len(t, idx.LocationsIn(ir.CategoryDocs), 2)
	assert.Len(t, idx.LocationsIn(ir.CategoryCode), 1)
	assert.Equal(t, "code/main.go", idx.Locations[0].Path)
}

func TestSnapshot_Empty(t *testing.T) {
	s := createTestStore(t)
	idx, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Definitions)
	assert.Empty(t, idx.Locations)
}

func TestDump_Golden(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defs, locs := fixtureRows()
	require.NoError(t, s.Rebuild(ctx, defs, locs))

	var buf bytes.Buffer
	require.NoError(t, s.Dump(ctx, &buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "index_dump", buf.Bytes())
}
