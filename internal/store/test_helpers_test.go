package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/construct/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reqs.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixtureRows is a small corpus with one orphan and one untested requirement.
func fixtureRows() ([]ir.RequirementDefinition, []ir.RequirementLocation) {
	defs := []ir.RequirementDefinition{
		{ID: "$REQ_B", Text: "B text", Origin: "reqs/a.md"},
		{ID: "$REQ_A", Text: "A text", Source: "README.md", Origin: "reqs/a.md"},
	}
	locs := []ir.RequirementLocation{
		{ID: "$REQ_A", Path: "tests/failing/test_01_a.py", Line: 2, Category: ir.CategoryTests},
		{ID: "$REQ_A", Path: "reqs/a.md", Line: 1, Category: ir.CategoryDocs},
		{ID: "$REQ_B", Path: "reqs/a.md", Line: 4, Category: ir.CategoryDocs},
		{ID: "$REQ_GONE", Path: "code/main.go", Line: 7, Category: ir.CategoryCode},
	}
	return defs, locs
}
