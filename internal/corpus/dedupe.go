package corpus

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/construct/internal/extract"
)

// Rename records one heading id rewritten by Dedupe.
type Rename struct {
	Path string
	Line int
	From string
	To   string
}

func (r Rename) String() string {
	return fmt.Sprintf("%s:%d: %s -> %s", r.Path, r.Line, r.From, r.To)
}

// Dedupe rewrites definition documents so every heading id is unique.
//
// Documents are visited in lexicographic path order and headings in line
// order. The first occurrence of an id keeps it; each later occurrence is
// renamed to <id>_N with the smallest N >= 2 not already in use anywhere
// in the definition documents. Running Dedupe on a corpus without
// duplicates changes nothing.
func Dedupe(ctx context.Context, l Layout) ([]Rename, error) {
	paths, err := DefinitionPaths(l)
	if err != nil {
		return nil, err
	}

	contents := make(map[string]string, len(paths))
	used := make(map[string]bool)
	for _, p := range paths {
		b, err := os.ReadFile(l.Abs(p))
		if err != nil {
			return nil, fmt.Errorf("dedupe: read %s: %w", p, err)
		}
		contents[p] = string(b)
		for _, h := range extract.HeadingIDs(contents[p]) {
			used[h.ID] = true
		}
	}

	var renames []Rename
	seen := make(map[string]bool)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return renames, err
		}

		lines := strings.Split(contents[p], "\n")
		changed := false
		for _, h := range extract.HeadingIDs(contents[p]) {
			if !seen[h.ID] {
				seen[h.ID] = true
				continue
			}
			to := nextFree(h.ID, used)
			used[to] = true
			seen[to] = true
			lines[h.Line-1] = strings.Replace(lines[h.Line-1], h.ID+":", to+":", 1)
			renames = append(renames, Rename{Path: p, Line: h.Line, From: h.ID, To: to})
			changed = true
		}
		if !changed {
			continue
		}

		abs := l.Abs(p)
		info, err := os.Stat(abs)
		if err != nil {
			return renames, fmt.Errorf("dedupe: stat %s: %w", p, err)
		}
		if err := os.WriteFile(abs, []byte(strings.Join(lines, "\n")), info.Mode().Perm()); err != nil {
			return renames, fmt.Errorf("dedupe: write %s: %w", p, err)
		}
	}
	return renames, nil
}

func nextFree(id string, used map[string]bool) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !used[candidate] {
			return candidate
		}
	}
}
