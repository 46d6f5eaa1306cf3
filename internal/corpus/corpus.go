// Package corpus is the filesystem edge of requirement extraction.
//
// It walks the workspace, feeds documents to package extract, and owns the
// operations that rewrite definition documents (the dedupe pre-pass) or
// fingerprint them (the convergence loop).
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/construct/internal/extract"
	"github.com/roach88/construct/internal/ir"
)

// Load reads the workspace into an extraction corpus.
// Unreadable files become warnings; missing directories contribute nothing.
func Load(ctx context.Context, l Layout) (extract.Corpus, []extract.Warning, error) {
	var (
		c     extract.Corpus
		warns []extract.Warning
	)

	defPaths, err := DefinitionPaths(l)
	if err != nil {
		return c, nil, err
	}
	for _, p := range defPaths {
		content, err := os.ReadFile(l.Abs(p))
		if err != nil {
			warns = append(warns, extract.Warning{Path: p, Message: fmt.Sprintf("could not read: %v", err)})
			continue
		}
		c.Definitions = append(c.Definitions, extract.Document{Path: p, Category: ir.CategoryDocs, Content: string(content)})
	}

	scans := []struct {
		dir  string
		exts []string
		cat  ir.Category
	}{
		{l.DocsDir, l.DocExtensions, ir.CategoryDocs},
		{l.TestsDir, l.TestExtensions, ir.CategoryTests},
		{l.CodeDir, l.CodeExtensions, ir.CategoryCode},
	}
	for _, s := range scans {
		docs, w, err := walk(ctx, l, s.dir, s.exts, s.cat)
		if err != nil {
			return c, warns, err
		}
		c.Documents = append(c.Documents, docs...)
		warns = append(warns, w...)
	}
	return c, warns, nil
}

// DefinitionPaths lists the definition documents (top level of DocsDir
// with a doc extension), sorted.
func DefinitionPaths(l Layout) ([]string, error) {
	entries, err := os.ReadDir(l.Abs(l.DocsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list definition documents: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), l.DocExtensions) {
			continue
		}
		paths = append(paths, filepath.ToSlash(filepath.Join(l.DocsDir, e.Name())))
	}
	sort.Strings(paths)
	return paths, nil
}

func walk(ctx context.Context, l Layout, dir string, exts []string, cat ir.Category) ([]extract.Document, []extract.Warning, error) {
	var (
		docs  []extract.Document
		warns []extract.Warning
	)
	root := l.Abs(dir)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel := l.Rel(path)
		if err != nil {
			warns = append(warns, extract.Warning{Path: rel, Message: fmt.Sprintf("could not read: %v", err)})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasExt(d.Name(), exts) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			warns = append(warns, extract.Warning{Path: rel, Message: fmt.Sprintf("could not read: %v", err)})
			return nil
		}
		docs = append(docs, extract.Document{Path: rel, Category: cat, Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, warns, fmt.Errorf("scan %s: %w", dir, err)
	}
	return docs, warns, nil
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Fingerprint hashes every definition document. Returns "" when there are
// none.
func Fingerprint(l Layout) (string, error) {
	paths, err := DefinitionPaths(l)
	if err != nil {
		return "", err
	}
	docs := make([]ir.Document, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(l.Abs(p))
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", p, err)
		}
		docs = append(docs, ir.Document{Path: p, Content: content})
	}
	return ir.Fingerprint(docs), nil
}
