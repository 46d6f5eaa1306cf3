// Package coverage derives outstanding work from a requirement index.
//
// Every function is a pure set operation over an ir.Index. Results are
// recomputed after each corpus mutation and never cached across one.
package coverage

import (
	"sort"

	"github.com/roach88/construct/internal/ir"
)

// Orphan is a requirement id referenced from tests or code without a
// matching definition.
type Orphan struct {
	ID        string
	Locations []ir.RequirementLocation // In (path, line) order
}

// Orphans returns tags in the tests and code categories whose id has no
// definition, grouped by id in lexicographic order.
func Orphans(idx *ir.Index) []Orphan {
	grouped := make(map[string][]ir.RequirementLocation)
	for _, cat := range []ir.Category{ir.CategoryTests, ir.CategoryCode} {
		for _, loc := range idx.LocationsIn(cat) {
			if _, ok := idx.Definition(loc.ID); ok {
				continue
			}
			grouped[loc.ID] = append(grouped[loc.ID], loc)
		}
	}

	orphans := make([]Orphan, 0, len(grouped))
	for id, locs := range grouped {
		ir.SortLocations(locs)
		orphans = append(orphans, Orphan{ID: id, Locations: locs})
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans
}

// Untested returns definitions that have no location in the tests
// category, ordered by id.
func Untested(idx *ir.Index) []ir.RequirementDefinition {
	tested := make(map[string]bool)
	for _, loc := range idx.LocationsIn(ir.CategoryTests) {
		tested[loc.ID] = true
	}

	var untested []ir.RequirementDefinition
	for _, def := range idx.Definitions {
		if !tested[def.ID] {
			untested = append(untested, def)
		}
	}
	return untested
}

// Duplicates returns ids that occur in more than one definition, ordered
// by id. The index itself rejects duplicates, so this runs on raw
// extraction output.
func Duplicates(defs []ir.RequirementDefinition) []string {
	counts := make(map[string]int)
	for _, d := range defs {
		counts[d.ID]++
	}
	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}

// Summary counts the rows of an index.
type Summary struct {
	Definitions int
	Locations   map[ir.Category]int
}

// Summarize counts definitions and locations per category.
func Summarize(idx *ir.Index) Summary {
	s := Summary{
		Definitions: len(idx.Definitions),
		Locations:   make(map[ir.Category]int, len(ir.Categories)),
	}
	for _, c := range ir.Categories {
		s.Locations[c] = len(idx.LocationsIn(c))
	}
	return s
}

// IDs extracts the ids of orphans, in order.
func IDs(orphans []Orphan) []string {
	ids := make([]string, len(orphans))
	for i, o := range orphans {
		ids[i] = o.ID
	}
	return ids
}
