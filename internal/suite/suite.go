// Package suite tracks which test files are failing and which are passing.
//
// A test file's state is the directory it lives in. Suite keeps the logical
// state change and the file move together: Transition is the only way a
// file changes state, and it refuses moves that would leave a name in both
// directories.
package suite

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/roach88/construct/internal/corpus"
)

// State is a test file's lifecycle state.
type State string

const (
	Failing State = "failing"
	Passing State = "passing"
)

// TestFile is one test file and its current state.
type TestFile struct {
	Name  string
	State State
}

// ErrNotFound is returned when a test file is in neither directory.
var ErrNotFound = errors.New("test file not found")

// TransitionError reports a refused state change.
type TransitionError struct {
	Name     string
	From, To State
	Reason   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s: %s", e.Name, e.From, e.To, e.Reason)
}

// Suite is the set of test files over an FS.
type Suite struct {
	FS    FS
	Dirs  map[State]string
	Match func(name string) bool
}

// New returns a suite using l's failing and passing directories and test
// patterns.
func New(fsys FS, l corpus.Layout) *Suite {
	return &Suite{
		FS: fsys,
		Dirs: map[State]string{
			Failing: l.FailingDir,
			Passing: l.PassingDir,
		},
		Match: l.IsTestFile,
	}
}

// Path returns the slash path of name in state.
func (s *Suite) Path(name string, st State) string {
	return path.Join(s.Dirs[st], name)
}

// List returns the test file names in state, sorted. Lexicographic order
// is processing order.
func (s *Suite) List(st State) ([]string, error) {
	dir, ok := s.Dirs[st]
	if !ok {
		return nil, fmt.Errorf("unknown state %q", st)
	}
	names, err := s.FS.List(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s tests: %w", st, err)
	}
	var out []string
	for _, n := range names {
		if s.Match == nil || s.Match(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// All returns every test file, failing first, each group sorted.
func (s *Suite) All() ([]TestFile, error) {
	var out []TestFile
	for _, st := range []State{Failing, Passing} {
		names, err := s.List(st)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			out = append(out, TestFile{Name: n, State: st})
		}
	}
	return out, nil
}

// State returns the state of name, or ErrNotFound. A name present in both
// directories reports Failing; Verify surfaces that condition.
func (s *Suite) State(name string) (State, error) {
	for _, st := range []State{Failing, Passing} {
		if s.FS.Exists(s.Path(name, st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Transition moves name from one state to the other.
func (s *Suite) Transition(name string, from, to State) error {
	if from == to {
		return &TransitionError{Name: name, From: from, To: to, Reason: "same state"}
	}
	if !s.FS.Exists(s.Path(name, from)) {
		return &TransitionError{Name: name, From: from, To: to, Reason: "not in " + string(from)}
	}
	if s.FS.Exists(s.Path(name, to)) {
		return &TransitionError{Name: name, From: from, To: to, Reason: "already in " + string(to)}
	}
	if err := s.FS.MkdirAll(s.Dirs[to]); err != nil {
		return fmt.Errorf("create %s dir: %w", to, err)
	}
	if err := s.FS.Rename(s.Path(name, from), s.Path(name, to)); err != nil {
		return fmt.Errorf("move %s to %s: %w", name, to, err)
	}
	return nil
}

// Verify returns the names present in both directories, sorted. An empty
// result means the states are mutually exclusive.
func (s *Suite) Verify() ([]string, error) {
	failing, err := s.List(Failing)
	if err != nil {
		return nil, err
	}
	passing, err := s.List(Passing)
	if err != nil {
		return nil, err
	}
	inFailing := make(map[string]bool, len(failing))
	for _, n := range failing {
		inFailing[n] = true
	}
	var both []string
	for _, n := range passing {
		if inFailing[n] {
			both = append(both, n)
		}
	}
	return both, nil
}

// Revalidate moves every passing test back to failing when no failing tests
// remain, so the whole suite is re-run against the current build. It does
// nothing when any test is failing. Returns the moved names.
func (s *Suite) Revalidate() ([]string, error) {
	failing, err := s.List(Failing)
	if err != nil {
		return nil, err
	}
	if len(failing) > 0 {
		return nil, nil
	}
	passing, err := s.List(Passing)
	if err != nil {
		return nil, err
	}
	for i, n := range passing {
		if err := s.Transition(n, Passing, Failing); err != nil {
			return passing[:i], err
		}
	}
	return passing, nil
}
