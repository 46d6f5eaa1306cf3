package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Passing bool // run only passing tests
	Failing bool // run only failing tests
	Echo    bool // stream test output while it runs
}

// TestResult is the JSON result of a single test run.
type TestResult struct {
	Test        string `json:"test"`
	ExitCode    int    `json:"exit_code"`
	ReportPath  string `json:"report,omitempty"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	BuildFailed bool   `json:"build_failed,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [file]",
		Short: "Build the project and run tests",
		Long: `Run the build procedure, then one test file or a whole test directory.

Without a file, failing tests run if there are any, otherwise passing tests.
Every test run writes a report and prints "report file: <path>".

Exit codes:
  0    all tests passed
  1    a test failed (directory mode) or a fatal error
  124  the test exceeded its timeout
  N    the build failed with exit code N, or the single test exited with N

Examples:
  construct test
  construct test --passing
  construct test tests/failing/test_01_login.py`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Passing && opts.Failing {
				return NewExitError(ExitFailure, "--passing and --failing are mutually exclusive")
			}
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runTests(opts, file, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Passing, "passing", false, "run only passing tests")
	cmd.Flags().BoolVar(&opts.Failing, "failing", false, "run only failing tests")
	cmd.Flags().BoolVar(&opts.Echo, "echo", false, "stream test output while it runs")

	return cmd
}

func runTests(opts *TestOptions, file string, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	h, err := e.harness()
	if err != nil {
		return err
	}
	h.Echo = opts.Echo

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	if file == "" {
		mode := harness.ModeDefault
		switch {
		case opts.Passing:
			mode = harness.ModePassing
		case opts.Failing:
			mode = harness.ModeFailing
		}
		code, err := h.RunMode(ctx, mode)
		if err != nil {
			return testError(err)
		}
		return exitWith(code, "tests failed")
	}

	out, err := h.Check(ctx, workspaceRel(e, file))
	if err != nil {
		return testError(err)
	}
	if opts.Format == "json" {
		if err := e.output.Success(TestResult{
			Test:        out.Test,
			ExitCode:    out.ExitCode,
			ReportPath:  out.ReportPath,
			TimedOut:    out.TimedOut,
			BuildFailed: out.BuildFailed,
		}); err != nil {
			return err
		}
	}
	if out.BuildFailed {
		if out.TimedOut {
			return NewExitError(ExitTimeout, "build timed out")
		}
		return NewExitError(out.ExitCode, fmt.Sprintf("build failed with exit code %d", out.ExitCode))
	}
	return exitWith(out.ExitCode, "test failed")
}

// workspaceRel turns a path given on the command line into a
// workspace-relative slash path.
func workspaceRel(e *env, file string) string {
	if filepath.IsAbs(file) {
		return e.layout.Rel(file)
	}
	return filepath.ToSlash(strings.TrimPrefix(filepath.Clean(file), "./"))
}

func exitWith(code int, message string) error {
	switch code {
	case 0:
		return nil
	case harness.ExitTimeout:
		return NewExitError(ExitTimeout, "test timed out")
	default:
		return NewExitError(code, fmt.Sprintf("%s with exit code %d", message, code))
	}
}

func testError(err error) error {
	if errors.Is(err, harness.ErrNoBuildScript) {
		return WrapExitError(ExitFailure, "cannot build", err)
	}
	return WrapExitError(ExitFailure, "test run failed", err)
}
