package ir

import (
	"fmt"
	"sort"
)

// Category classifies where a requirement tag occurrence was found.
type Category string

const (
	CategoryDocs  Category = "docs"
	CategoryTests Category = "tests"
	CategoryCode  Category = "code"
)

// Categories lists every category in index order.
var Categories = []Category{CategoryDocs, CategoryTests, CategoryCode}

// ParseCategory converts a stored category string back into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// RequirementDefinition is the canonical text and metadata for one
// requirement id, declared once in a definition document.
type RequirementDefinition struct {
	ID     string `json:"req_id"`
	Text   string `json:"req_text"`
	Source string `json:"source_attribution"` // Empty when the block has no Source line
	Origin string `json:"origin_document"`    // Path of the definition document
}

// RequirementLocation is one occurrence of a requirement tag in the corpus.
type RequirementLocation struct {
	ID       string   `json:"req_id"`
	Path     string   `json:"filespec"`
	Line     int      `json:"line_num"` // 1-based
	Category Category `json:"category"`
}

// String renders the location as path:line, the form used in prompts.
func (l RequirementLocation) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Index is the pair of requirement tables with lookups by id and category.
// It is a disposable cache of the corpus; build a new one rather than
// patching an existing one.
type Index struct {
	Definitions []RequirementDefinition
	Locations   []RequirementLocation

	byID      map[string]RequirementDefinition
	locsByID  map[string][]RequirementLocation
	locsByCat map[Category][]RequirementLocation
}

// NewIndex builds an index from definitions and locations.
// Definitions are sorted by id; locations by (path, line, id).
// Duplicate definition ids are rejected: the dedupe pass must run first.
func NewIndex(defs []RequirementDefinition, locs []RequirementLocation) (*Index, error) {
	idx := &Index{
		Definitions: append([]RequirementDefinition(nil), defs...),
		Locations:   append([]RequirementLocation(nil), locs...),
		byID:        make(map[string]RequirementDefinition, len(defs)),
		locsByID:    make(map[string][]RequirementLocation),
		locsByCat:   make(map[Category][]RequirementLocation),
	}

	SortDefinitions(idx.Definitions)
	SortLocations(idx.Locations)

	for _, d := range idx.Definitions {
		if _, dup := idx.byID[d.ID]; dup {
			return nil, &DuplicateIDError{ID: d.ID}
		}
		idx.byID[d.ID] = d
	}
	for _, l := range idx.Locations {
		idx.locsByID[l.ID] = append(idx.locsByID[l.ID], l)
		idx.locsByCat[l.Category] = append(idx.locsByCat[l.Category], l)
	}
	return idx, nil
}

// Definition looks up a definition by id.
func (x *Index) Definition(id string) (RequirementDefinition, bool) {
	d, ok := x.byID[id]
	return d, ok
}

// LocationsOf returns every location of id, in index order.
func (x *Index) LocationsOf(id string) []RequirementLocation {
	return x.locsByID[id]
}

// LocationsIn returns every location in category c, in index order.
func (x *Index) LocationsIn(c Category) []RequirementLocation {
	return x.locsByCat[c]
}

// DuplicateIDError reports a requirement id defined more than once.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("requirement %s is defined more than once", e.ID)
}

// SortDefinitions orders definitions by id, then origin.
func SortDefinitions(defs []RequirementDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].ID != defs[j].ID {
			return defs[i].ID < defs[j].ID
		}
		return defs[i].Origin < defs[j].Origin
	})
}

// SortLocations orders locations by path, line, then id.
func SortLocations(locs []RequirementLocation) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.ID < b.ID
	})
}
