package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/ir"
)

func mustIndex(t *testing.T, defs []ir.RequirementDefinition, locs []ir.RequirementLocation) *ir.Index {
	t.Helper()
	idx, err := ir.NewIndex(defs, locs)
	require.NoError(t, err)
	return idx
}

func TestOrphans(t *testing.T) {
	idx := mustIndex(t,
		[]ir.RequirementDefinition{{ID: "$REQ_A"}},
		[]ir.RequirementLocation{
			{ID: "$REQ_A", Path: "tests/failing/test_01.py", Line: 1, Category: ir.CategoryTests},
			{ID: "$REQ_Z", Path: "code/z.go", Line: 9, Category: ir.CategoryCode},
			{ID: "$REQ_Z", Path: "code/a.go", Line: 2, Category: ir.CategoryCode},
			{ID: "$REQ_M", Path: "tests/failing/test_02.py", Line: 4, Category: ir.CategoryTests},
			// Undefined tags in docs are not orphans.
			{ID: "$REQ_DOCONLY", Path: "reqs/x.md", Line: 1, Category: ir.CategoryDocs},
		},
	)

	orphans := Orphans(idx)
	require.Len(t, orphans, 2)
	assert.Equal(t, []string{"$REQ_M", "$REQ_Z"}, IDs(orphans))
	require.Len(t, orphans[1].Locations, 2)
	assert.Equal(t, "code/a.go", orphans[1].Locations[0].Path)
}

func TestOrphansNoneWhenAllDefined(t *testing.T) {
	idx := mustIndex(t,
		[]ir.RequirementDefinition{{ID: "$REQ_A"}},
		[]ir.RequirementLocation{{ID: "$REQ_A", Path: "code/a.go", Line: 1, Category: ir.CategoryCode}},
	)
	assert.Empty(t, Orphans(idx))
}

func TestUntested(t *testing.T) {
	// $REQ_A has a test; $REQ_B is only mentioned in code and docs.
	idx := mustIndex(t,
		[]ir.RequirementDefinition{{ID: "$REQ_B"}, {ID: "$REQ_A"}, {ID: "$REQ_C"}},
		[]ir.RequirementLocation{
			{ID: "$REQ_A", Path: "tests/passing/test_01.py", Line: 1, Category: ir.CategoryTests},
			{ID: "$REQ_B", Path: "code/b.go", Line: 1, Category: ir.CategoryCode},
			{ID: "$REQ_B", Path: "reqs/b.md", Line: 1, Category: ir.CategoryDocs},
		},
	)

	untested := Untested(idx)
	require.Len(t, untested, 2)
	assert.Equal(t, "$REQ_B", untested[0].ID)
	assert.Equal(t, "$REQ_C", untested[1].ID)
}

func TestDuplicates(t *testing.T) {
	defs := []ir.RequirementDefinition{
		{ID: "$REQ_B"}, {ID: "$REQ_A"}, {ID: "$REQ_B"}, {ID: "$REQ_A"}, {ID: "$REQ_C"},
	}
	assert.Equal(t, []string{"$REQ_A", "$REQ_B"}, Duplicates(defs))
	assert.Empty(t, Duplicates(defs[4:]))
}

func TestSummarize(t *testing.T) {
	idx := mustIndex(t,
		[]ir.RequirementDefinition{{ID: "$REQ_A"}},
		[]ir.RequirementLocation{
			{ID: "$REQ_A", Path: "reqs/a.md", Line: 1, Category: ir.CategoryDocs},
			{ID: "$REQ_A", Path: "tests/failing/t.py", Line: 1, Category: ir.CategoryTests},
			{ID: "$REQ_A", Path: "tests/failing/t.py", Line: 2, Category: ir.CategoryTests},
		},
	)
	s := Summarize(idx)
	assert.Equal(t, 1, s.Definitions)
	assert.Equal(t, 1, s.Locations[ir.CategoryDocs])
	assert.Equal(t, 2, s.Locations[ir.CategoryTests])
	assert.Equal(t, 0, s.Locations[ir.CategoryCode])
}
