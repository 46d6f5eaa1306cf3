package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/report"
)

// Default timeouts.
const (
	DefaultTestTimeout  = 120 * time.Second
	DefaultBuildTimeout = 3600 * time.Second
)

// ErrNoBuildScript is returned when the workspace has no build procedure.
var ErrNoBuildScript = errors.New("no build script found")

// DefaultBuildRunners maps build script extensions to the argv prefix that
// runs them.
func DefaultBuildRunners() map[string][]string {
	return map[string][]string{
		".py":  {"uv", "run", "--script"},
		".sh":  {"sh"},
		".ps1": {"pwsh", "-File"},
	}
}

// DefaultTestRunner is the argv prefix that runs one test file.
func DefaultTestRunner() []string {
	return []string{"uv", "run", "--script"}
}

// Mode selects which test directory RunMode runs.
type Mode int

const (
	// ModeDefault runs failing tests if any exist, otherwise passing ones.
	ModeDefault Mode = iota
	ModePassing
	ModeFailing
)

// Outcome is the result of running one test file.
type Outcome struct {
	Test        string // base name
	ExitCode    int
	Transcript  string
	ReportPath  string
	TimedOut    bool
	BuildFailed bool
}

// Passed reports whether the test exited 0.
func (o Outcome) Passed() bool { return o.ExitCode == 0 }

// Harness runs the workspace's build procedure and test files.
type Harness struct {
	Layout  corpus.Layout
	Reports *report.Writer
	Logger  *slog.Logger

	// Out receives banners and "report file:" lines.
	Out io.Writer
	// Echo copies each test transcript line to Out as it is captured.
	Echo bool

	TestRunner   []string
	BuildRunners map[string][]string
	TestTimeout  time.Duration
	BuildTimeout time.Duration
	GraceWindow  time.Duration
}

// New returns a harness with default runners and timeouts.
func New(l corpus.Layout, reports *report.Writer, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		Layout:       l,
		Reports:      reports,
		Logger:       logger,
		Out:          os.Stdout,
		TestRunner:   DefaultTestRunner(),
		BuildRunners: DefaultBuildRunners(),
		TestTimeout:  DefaultTestTimeout,
		BuildTimeout: DefaultBuildTimeout,
		GraceWindow:  DefaultGraceWindow,
	}
}

// BuildScript is a discovered build procedure.
type BuildScript struct {
	Path string // workspace-relative
	Argv []string
}

// FindBuildScript looks for <tests>/build<ext> for every known extension.
// When several exist the first one found wins; which one that is depends
// on map iteration and is not part of the contract.
func (h *Harness) FindBuildScript() (BuildScript, bool) {
	for ext, prefix := range h.BuildRunners {
		rel := path.Join(h.Layout.TestsDir, "build"+ext)
		if info, err := os.Stat(h.Layout.Abs(rel)); err == nil && !info.IsDir() {
			argv := append(append([]string(nil), prefix...), rel)
			return BuildScript{Path: rel, Argv: argv}, true
		}
	}
	return BuildScript{}, false
}

func (h *Harness) banner(title string) {
	line := strings.Repeat("=", 60)
	fmt.Fprintf(h.Out, "\n%s\n%s\n%s\n\n", line, title, line)
}

// Build runs the build procedure with inherited output and returns its
// exit code.
func (h *Harness) Build(ctx context.Context) (int, error) {
	script, ok := h.FindBuildScript()
	if !ok {
		return 1, ErrNoBuildScript
	}

	h.banner("Building project")
	h.Logger.Debug("running build", "argv", shellquote.Join(script.Argv...))
	res, err := Run(ctx, Command{
		Args:    script.Argv,
		Dir:     h.Layout.Root,
		Timeout: h.BuildTimeout,
		Grace:   h.GraceWindow,
		Stdout:  h.Out,
	})
	if err != nil {
		return 1, err
	}
	if res.TimedOut {
		fmt.Fprintf(h.Out, "\nCommand timed out after %s\n", h.BuildTimeout)
	}
	return res.ExitCode, nil
}

// RunTest runs one test file captured, writes its report, and prints the
// report path.
func (h *Harness) RunTest(ctx context.Context, test string) (Outcome, error) {
	argv := append(append([]string(nil), h.TestRunner...), test)
	h.banner("Running test: " + test)
	h.Logger.Debug("running test", "argv", shellquote.Join(argv...))

	cmd := Command{
		Args:    argv,
		Dir:     h.Layout.Root,
		Timeout: h.TestTimeout,
		Grace:   h.GraceWindow,
		Capture: true,
	}
	if h.Echo {
		cmd.Echo = h.Out
	}
	res, err := Run(ctx, cmd)
	if err != nil {
		return Outcome{}, err
	}

	name := path.Base(test)
	reportPath, err := h.Reports.WriteTest(ir.Report{
		Label:      name,
		Status:     ir.StatusOf(res.ExitCode),
		Transcript: res.Transcript,
	})
	if err != nil {
		return Outcome{}, err
	}
	fmt.Fprintf(h.Out, "report file: %s\n", reportPath)

	h.Logger.Info("test finished", "test", name, "exit_code", res.ExitCode, "timed_out", res.TimedOut, "duration", res.Duration)
	return Outcome{
		Test:       name,
		ExitCode:   res.ExitCode,
		Transcript: res.Transcript,
		ReportPath: reportPath,
		TimedOut:   res.TimedOut,
	}, nil
}

// Check builds, then runs one test. A failed build is returned as an
// outcome carrying the build's exit code; no test runs and no report is
// written.
func (h *Harness) Check(ctx context.Context, test string) (Outcome, error) {
	code, err := h.Build(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if code != 0 {
		fmt.Fprintf(h.Out, "\nBuild failed with exit code %d\n", code)
		return Outcome{Test: path.Base(test), ExitCode: code, BuildFailed: true, TimedOut: code == ExitTimeout}, nil
	}
	return h.RunTest(ctx, test)
}

// ListTests returns the workspace-relative test files in dir, sorted by
// name.
func (h *Harness) ListTests(dir string) ([]string, error) {
	entries, err := os.ReadDir(h.Layout.Abs(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list tests in %s: %w", dir, err)
	}
	var tests []string
	for _, e := range entries {
		if !e.IsDir() && h.Layout.IsTestFile(e.Name()) {
			tests = append(tests, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(tests)
	return tests, nil
}

// RunMode builds, then runs every test in the directory selected by mode.
// Returns 0 when all ran tests passed (or there were none), 1 when any
// failed, or the build's exit code when the build failed.
func (h *Harness) RunMode(ctx context.Context, mode Mode) (int, error) {
	code, err := h.Build(ctx)
	if err != nil {
		return 1, err
	}
	if code != 0 {
		fmt.Fprintf(h.Out, "\nBuild failed with exit code %d\n", code)
		return code, nil
	}

	var dirs []string
	switch mode {
	case ModePassing:
		dirs = []string{h.Layout.PassingDir}
	case ModeFailing:
		dirs = []string{h.Layout.FailingDir}
	default:
		dirs = []string{h.Layout.FailingDir, h.Layout.PassingDir}
	}

	var tests []string
	for _, d := range dirs {
		tests, err = h.ListTests(d)
		if err != nil {
			return 1, err
		}
		if len(tests) > 0 {
			break
		}
	}
	if len(tests) == 0 {
		fmt.Fprintln(h.Out, "\nNo tests found")
		return 0, nil
	}

	var failed []string
	for _, test := range tests {
		out, err := h.RunTest(ctx, test)
		if err != nil {
			return 1, err
		}
		if !out.Passed() {
			failed = append(failed, test)
		}
		if ctx.Err() != nil {
			return 1, ctx.Err()
		}
	}

	if len(failed) > 0 {
		fmt.Fprintf(h.Out, "\n%d test(s) failed:\n", len(failed))
		for _, f := range failed {
			fmt.Fprintf(h.Out, "  - %s\n", f)
		}
		return 1, nil
	}
	fmt.Fprintf(h.Out, "\nAll %d test(s) passed\n", len(tests))
	return 0, nil
}
