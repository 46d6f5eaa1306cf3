package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/oracle"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Workspace string
	Config    string
	Agent     string
	Model     string
	Verbose   bool
	Format    string // "json" | "text"

	// Oracle overrides the agent adapter (for testing).
	// If nil, commands drive the configured agent CLI.
	Oracle oracle.Oracle
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the construct CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "construct",
		Short: "construct - requirements-driven software construction",
		Long: `Drive a code-generation agent from requirement documents to a passing test suite.

Requirements are declared in markdown, every requirement gets a test, and
failing tests are fixed one at a time until the whole suite passes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Agent != "" && !oracle.Supported(opts.Agent) {
				return fmt.Errorf("unsupported agent %q", opts.Agent)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "C", ".", "workspace root")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default <workspace>/construct.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Agent, "agent", "", "agent CLI to drive (claude|codex)")
	cmd.PersistentFlags().StringVar(&opts.Model, "model", "", "model passed to the agent")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewReqsCommand(opts))
	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewCleanCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr in the selected format.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	code := GetExitCode(err)
	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	var details any
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		details = exitErr.Err.Error()
	}
	_ = f.Error(fmt.Sprintf("E%03d", code), err.Error(), details)
	return code
}
