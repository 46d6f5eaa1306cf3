package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/engine"
	"github.com/roach88/construct/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Clean       bool
	MaxAttempts int

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Construct the software until every test passes",
		Long: `Run the setup phase, then fix failing tests one at a time until none remain.

Setup makes sure a build procedure exists, repairs duplicate requirement ids,
removes references to undefined requirements, writes a test for every
untested requirement and orders the new tests. The main loop then builds and
runs the first failing test, asking the agent for a fix until it passes.

Exit codes:
  0  every test passes
  1  fatal error
  2  insufficient documentation
  3  a test could not be fixed within the attempt limit

Example:
  construct run
  construct run -C ./project --agent codex --clean`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConstruction(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "remove reports and tmp before starting")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", engine.DefaultMaxAttempts, "attempts per failing test (1-10)")

	return cmd
}

func runConstruction(opts *RunOptions, cmd *cobra.Command) error {
	if err := checkBound("--max-attempts", opts.MaxAttempts, engine.DefaultMaxAttempts); err != nil {
		return err
	}
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Clean {
		if err := cleanWorkspace(e); err != nil {
			return err
		}
	}

	h, err := e.harness()
	if err != nil {
		return err
	}
	o, err := e.oracle()
	if err != nil {
		return err
	}
	st, err := e.openIndex()
	if err != nil {
		return err
	}
	defer e.closeIndex(st)

	engineOpts := []engine.EngineOption{
		engine.WithMaxAttempts(opts.MaxAttempts),
		engine.WithOracleTimeout(e.cfg.OracleTimeout()),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDs(opts.RunIDs))
	}
	eng := engine.New(engine.Deps{
		Layout:  e.layout,
		Indexer: corpus.NewIndexer(e.layout, st, e.logger),
		Oracle:  o,
		Runner:  h,
		Suite:   suite.New(suite.OSFS{Root: e.layout.Root}, e.layout),
		Logger:  e.logger,
		Out:     e.out,
	}, engineOpts...)

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	sum, err := eng.Run(ctx)
	if err != nil {
		return e.exitErrorFor(err)
	}
	if opts.Format == "json" {
		return e.output.Success(runSummary{
			RunID:        sum.RunID,
			Requirements: sum.Requirements,
			Passing:      sum.Passing,
			TestsWritten: sum.TestsWritten,
			Attempts:     len(sum.Attempts),
		})
	}
	return nil
}

type runSummary struct {
	RunID        string `json:"run_id"`
	Requirements int    `json:"requirements"`
	Passing      int    `json:"passing"`
	TestsWritten int    `json:"tests_written"`
	Attempts     int    `json:"attempts"`
}

// checkBound rejects a limit flag outside 1..limit.
func checkBound(flag string, n, limit int) error {
	if n < 1 || n > limit {
		return NewExitError(ExitFailure, fmt.Sprintf("%s must be between 1 and %d, got %d", flag, limit, n))
	}
	return nil
}
