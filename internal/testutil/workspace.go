package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Workspace is a throwaway construction workspace on disk.
type Workspace struct {
	t    testing.TB
	Root string
}

// NewWorkspace creates an empty workspace in a test temp dir.
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	return &Workspace{t: t, Root: t.TempDir()}
}

// Path resolves a slash-separated workspace path.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Write creates rel with content, making parent directories.
func (w *Workspace) Write(rel, content string) *Workspace {
	w.t.Helper()
	p := w.Path(rel)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(w.t, os.WriteFile(p, []byte(content), 0o644))
	return w
}

// Mkdir creates rel and its parents.
func (w *Workspace) Mkdir(rel string) *Workspace {
	w.t.Helper()
	require.NoError(w.t, os.MkdirAll(w.Path(rel), 0o755))
	return w
}

// Read returns the content of rel, failing the test if it is missing.
func (w *Workspace) Read(rel string) string {
	w.t.Helper()
	b, err := os.ReadFile(w.Path(rel))
	require.NoError(w.t, err)
	return string(b)
}

// Exists reports whether rel exists.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Path(rel))
	return err == nil
}

// List returns the sorted file names directly inside rel. A missing
// directory lists as empty.
func (w *Workspace) List(rel string) []string {
	w.t.Helper()
	entries, err := os.ReadDir(w.Path(rel))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(w.t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
