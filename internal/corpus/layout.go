package corpus

import (
	"path/filepath"
)

// Layout names the workspace paths. Every directory field is relative to
// Root and uses forward slashes; index rows carry these relative paths.
type Layout struct {
	Root string

	Readme     string
	DocsDir    string
	TestsDir   string
	FailingDir string
	PassingDir string
	CodeDir    string
	ReportsDir string
	TmpDir     string
	PromptsDir string

	DocExtensions  []string
	TestExtensions []string
	CodeExtensions []string

	// TestPatterns are the file name globs of runnable test files.
	TestPatterns []string
}

// DefaultLayout returns the conventional layout rooted at root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:           root,
		Readme:         "README.md",
		DocsDir:        "reqs",
		TestsDir:       "tests",
		FailingDir:     "tests/failing",
		PassingDir:     "tests/passing",
		CodeDir:        "code",
		ReportsDir:     "reports",
		TmpDir:         "tmp",
		PromptsDir:     "the-system/prompts",
		DocExtensions:  []string{".md"},
		TestExtensions: []string{".py"},
		CodeExtensions: []string{".py", ".cs", ".go", ".rs", ".java", ".js", ".ts", ".c", ".cpp", ".h"},
		TestPatterns:   []string{"test_*.py", "_test_*.py"},
	}
}

// Abs resolves a workspace-relative path against Root.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// Rel converts an absolute path under Root back to the slash form used in
// the index. Paths outside Root are returned unchanged.
func (l Layout) Rel(abs string) string {
	rel, err := filepath.Rel(l.Root, abs)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return abs
	}
	return filepath.ToSlash(rel)
}

// IsTestFile reports whether name matches one of the test patterns.
func (l Layout) IsTestFile(name string) bool {
	for _, pat := range l.TestPatterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// IndexPath is the sqlite file holding the requirement index.
func (l Layout) IndexPath() string {
	return filepath.Join(l.Abs(l.TmpDir), "reqs.sqlite")
}
