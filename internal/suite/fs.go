package suite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
)

// FS is the filesystem capability a Suite needs. Paths are slash-separated
// and relative to the FS root.
type FS interface {
	// List returns the names of regular files directly inside dir.
	// A missing dir lists as empty.
	List(dir string) ([]string, error)
	Exists(name string) bool
	// Rename moves a file; it fails if the destination exists.
	Rename(from, to string) error
	MkdirAll(dir string) error
}

// OSFS is an FS rooted at a directory on disk.
type OSFS struct {
	Root string
}

func (o OSFS) abs(name string) string {
	return filepath.Join(o.Root, filepath.FromSlash(name))
}

func (o OSFS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(o.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (o OSFS) Exists(name string) bool {
	_, err := os.Stat(o.abs(name))
	return err == nil
}

func (o OSFS) Rename(from, to string) error {
	if o.Exists(to) {
		return fmt.Errorf("rename %s: %w", to, fs.ErrExist)
	}
	return os.Rename(o.abs(from), o.abs(to))
}

func (o OSFS) MkdirAll(dir string) error {
	return os.MkdirAll(o.abs(dir), 0o755)
}

// MemFS is an in-memory FS for tests.
type MemFS struct {
	mu    sync.Mutex
	files map[string]string
}

// NewMemFS returns an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]string)}
}

// Write creates or replaces a file.
func (m *MemFS) Write(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(name)] = content
}

// Remove deletes a file if present.
func (m *MemFS) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path.Clean(name))
}

// Read returns a file's content.
func (m *MemFS) Read(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path.Clean(name)]
	return c, ok
}

func (m *MemFS) List(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = path.Clean(dir)
	var names []string
	for p := range m.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemFS) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path.Clean(name)]
	return ok
}

func (m *MemFS) Rename(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = path.Clean(from), path.Clean(to)
	c, ok := m.files[from]
	if !ok {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
	}
	if _, exists := m.files[to]; exists {
		return fmt.Errorf("rename %s: %w", to, fs.ErrExist)
	}
	delete(m.files, from)
	m.files[to] = c
	return nil
}

func (m *MemFS) MkdirAll(string) error { return nil }
