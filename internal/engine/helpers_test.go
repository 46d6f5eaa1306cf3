package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/harness"
	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/report"
	"github.com/roach88/construct/internal/store"
	"github.com/roach88/construct/internal/suite"
	"github.com/roach88/construct/internal/testutil"
)

// fakeRunner stands in for the harness. Exit codes come from the verdict
// function; every Check is recorded.
type fakeRunner struct {
	ws      *testutil.Workspace
	verdict func(name string, attempt int) int

	mu     sync.Mutex
	checks []string
	counts map[string]int
}

func newFakeRunner(ws *testutil.Workspace, verdict func(name string, attempt int) int) *fakeRunner {
	if verdict == nil {
		verdict = func(string, int) int { return 0 }
	}
	return &fakeRunner{ws: ws, verdict: verdict, counts: make(map[string]int)}
}

func (f *fakeRunner) FindBuildScript() (harness.BuildScript, bool) {
	if f.ws.Exists("tests/build.py") {
		return harness.BuildScript{Path: "tests/build.py", Argv: []string{"uv", "run", "--script", "tests/build.py"}}, true
	}
	return harness.BuildScript{}, false
}

func (f *fakeRunner) Check(_ context.Context, test string) (harness.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := path.Base(test)
	f.checks = append(f.checks, name)
	f.counts[name]++
	code := f.verdict(name, f.counts[name])
	return harness.Outcome{Test: name, ExitCode: code, Transcript: fmt.Sprintf("exit %d\n", code)}, nil
}

func (f *fakeRunner) Checks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checks...)
}

type fixture struct {
	ws     *testutil.Workspace
	oracle *oracle.Scripted
	runner *fakeRunner
	engine *Engine
}

func newFixture(t *testing.T, ws *testutil.Workspace, verdict func(string, int) int, opts ...EngineOption) *fixture {
	t.Helper()
	l := corpus.DefaultLayout(ws.Root)
	st, err := store.Open(filepath.Join(t.TempDir(), "reqs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := oracle.NewScripted()
	o.Reports = &report.Writer{Dir: ws.Path("reports"), Clock: testutil.NewSteppingClock(testutil.Epoch, time.Second)}
	runner := newFakeRunner(ws, verdict)

	opts = append([]EngineOption{WithRunIDs(NewFixedGenerator("run-1", "run-2"))}, opts...)
	e := New(Deps{
		Layout:  l,
		Indexer: corpus.NewIndexer(l, st, logger),
		Oracle:  o,
		Runner:  runner,
		Suite:   suite.New(suite.OSFS{Root: ws.Root}, l),
		Logger:  logger,
	}, opts...)
	return &fixture{ws: ws, oracle: o, runner: runner, engine: e}
}

var requestedID = regexp.MustCompile(`\$REQ_ID: (\S+)`)

// writesTests answers WRITE_TEST requests by creating a failing test that
// references the requested id.
func writesTests(ws *testutil.Workspace) oracle.Handler {
	var n int
	return func(_ context.Context, req oracle.Request) (string, error) {
		m := requestedID.FindStringSubmatch(req.Prompt)
		if m == nil {
			return "", fmt.Errorf("no requirement id in prompt")
		}
		n++
		slug := strings.ToLower(strings.TrimPrefix(m[1], "$REQ_"))
		ws.Write(fmt.Sprintf("tests/failing/test_%02d_%s.py", 10+n, slug), "# "+m[1]+"\n")
		return "wrote test", nil
	}
}

// readyWorkspace has a README, a build script and one tested requirement.
func readyWorkspace(t *testing.T) *testutil.Workspace {
	return testutil.NewWorkspace(t).
		Write("README.md", "# Demo\n").
		Write("tests/build.py", "print('build')\n").
		Write("reqs/core.md", "## $REQ_A: Alpha\n**Source:** README.md\nDo alpha.\n").
		Write("tests/failing/test_01_a.py", "# $REQ_A\n")
}
