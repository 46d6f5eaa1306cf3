package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/testutil"
)

// shellWorkspace runs tests and builds with sh so fixtures need no
// toolchain.
func shellWorkspace(t *testing.T) *testutil.Workspace {
	return testutil.NewWorkspace(t).
		Write("construct.yaml", "runners:\n  test: sh\ntimeouts:\n  grace: 1s\n").
		Write("README.md", "# Demo\n").
		Write("tests/build.sh", "echo building\n")
}

type cmdResult struct {
	out    string
	errOut string
	err    error
}

func execute(t *testing.T, opts *RootOptions, cmd *cobra.Command, stdin string, args ...string) cmdResult {
	t.Helper()
	if opts.Format == "" {
		opts.Format = "text"
	}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return cmdResult{out: stdout.String(), errOut: stderr.String(), err: err}
}

func scripted() *oracle.Scripted {
	o := oracle.NewScripted()
	o.Default = oracle.Respond("ok")
	return o
}

func removeAll(path string) error {
	return os.RemoveAll(path)
}

// runCmdWith builds a run command around prepared options.
func runCmdWith(opts *RunOptions) *cobra.Command {
	cmd := NewRunCommand(opts.RootOptions)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConstruction(opts, cmd)
	}
	return cmd
}
