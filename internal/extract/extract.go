package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/construct/internal/ir"
)

var (
	tagPattern       = regexp.MustCompile(`\$REQ_[A-Za-z0-9_-]+`)
	headingCandidate = regexp.MustCompile(`^##\s+\$REQ_`)
	headingPattern   = regexp.MustCompile(`^##\s+(\$REQ_[A-Za-z0-9_-]+):\s*(\S.*)$`)
	sourcePattern    = regexp.MustCompile(`\*\*Source:\*\*\s*([^\n]+)`)
)

// Document is one text file of the corpus.
type Document struct {
	Path     string
	Category ir.Category
	Content  string
}

// Corpus groups the documents fed to Extract.
type Corpus struct {
	// Definitions are the definition documents (parsed for headings).
	Definitions []Document

	// Documents are scanned for tag occurrences. Definition documents are
	// normally listed here too, under CategoryDocs.
	Documents []Document
}

// Warning describes input that was skipped.
type Warning struct {
	Path    string
	Line    int // 0 when not tied to a line
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", w.Path, w.Line, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

// Result is a full replacement for the previous index contents.
type Result struct {
	Definitions []ir.RequirementDefinition
	Locations   []ir.RequirementLocation
	Warnings    []Warning
}

// Extract parses every definition document and scans every document for
// tags. Output rows are sorted so equal corpora give equal results.
func Extract(c Corpus) Result {
	var res Result
	for _, doc := range c.Definitions {
		defs, warns := ParseDefinitions(doc)
		res.Definitions = append(res.Definitions, defs...)
		res.Warnings = append(res.Warnings, warns...)
	}
	for _, doc := range c.Documents {
		res.Locations = append(res.Locations, ScanTags(doc)...)
	}
	ir.SortDefinitions(res.Definitions)
	ir.SortLocations(res.Locations)
	return res
}

// ScanTags returns every tag occurrence in doc with its 1-based line number.
func ScanTags(doc Document) []ir.RequirementLocation {
	var locs []ir.RequirementLocation
	for i, line := range splitLines(doc.Content) {
		for _, id := range tagPattern.FindAllString(line, -1) {
			locs = append(locs, ir.RequirementLocation{
				ID:       id,
				Path:     doc.Path,
				Line:     i + 1,
				Category: doc.Category,
			})
		}
	}
	return locs
}

// block is the raw text of one definition between headings.
type block struct {
	id      string
	line    int
	body    []string
	invalid bool
}

// ParseDefinitions splits doc on requirement headings.
// Text before the first heading is preamble and ignored.
func ParseDefinitions(doc Document) ([]ir.RequirementDefinition, []Warning) {
	var (
		blocks []*block
		cur    *block
		warns  []Warning
	)

	for i, line := range splitLines(doc.Content) {
		if headingCandidate.MatchString(line) {
			m := headingPattern.FindStringSubmatch(line)
			if m == nil {
				warns = append(warns, Warning{
					Path:    doc.Path,
					Line:    i + 1,
					Message: fmt.Sprintf("malformed requirement heading %q, block skipped", strings.TrimSpace(line)),
				})
				cur = &block{line: i + 1, invalid: true}
			} else {
				cur = &block{id: m[1], line: i + 1}
			}
			blocks = append(blocks, cur)
			continue
		}
		if cur != nil {
			cur.body = append(cur.body, line)
		}
	}

	defs := make([]ir.RequirementDefinition, 0, len(blocks))
	for _, b := range blocks {
		if b.invalid {
			continue
		}
		content := strings.TrimSpace(strings.Join(b.body, "\n"))
		source, text := splitSource(content)
		defs = append(defs, ir.RequirementDefinition{
			ID:     b.id,
			Text:   norm.NFC.String(text),
			Source: norm.NFC.String(source),
			Origin: doc.Path,
		})
	}
	return defs, warns
}

// splitSource pulls the attribution out of a definition block.
func splitSource(content string) (source, text string) {
	loc := sourcePattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", content
	}
	source = strings.TrimSpace(content[loc[2]:loc[3]])
	text = strings.TrimSpace(content[loc[1]:])
	return source, text
}

// HeadingIDs returns the id of every well-formed heading in doc, with its
// 1-based line number, in document order. Used by the dedupe pass, which
// needs positions rather than parsed definitions.
func HeadingIDs(content string) []HeadingRef {
	var refs []HeadingRef
	for i, line := range splitLines(content) {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			refs = append(refs, HeadingRef{ID: m[1], Line: i + 1})
		}
	}
	return refs
}

// HeadingRef locates a requirement heading.
type HeadingRef struct {
	ID   string
	Line int
}

func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
