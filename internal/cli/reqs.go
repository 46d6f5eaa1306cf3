package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/converge"
)

// ReqsOptions holds flags for the reqs command.
type ReqsOptions struct {
	*RootOptions
	SkipReadmeCheck bool
	Yes             bool
	MaxIterations   int
}

// ErrStoppedForReview is returned when the operator declines to continue
// after README problems were reported.
var ErrStoppedForReview = errors.New("stopped for README review")

// NewReqsCommand creates the reqs command.
func NewReqsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReqsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reqs",
		Short: "Write and repair requirement documents",
		Long: `Generate requirement documents from the README and repair them until they settle.

The README is checked first. When there are no requirement documents yet the
agent writes an initial set. Then every req-fix_*.md prompt runs in parallel,
duplicate ids are repaired, and the batch repeats until the documents stop
changing.

When the agent reports that the README needs changes, the latest report is
shown and the command waits for Enter before continuing (--yes continues
without asking).

Exit codes:
  0  requirements settled
  1  fatal error or stopped for review
  4  requirements still changing after the iteration limit

Examples:
  construct reqs
  construct reqs --skip-readme-check --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReqs(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipReadmeCheck, "skip-readme-check", false, "skip the initial README quality check")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "continue without confirmation when README changes are suggested")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", converge.DefaultMaxIterations, "fix iterations before giving up (1-5)")

	return cmd
}

func runReqs(opts *ReqsOptions, cmd *cobra.Command) error {
	if err := checkBound("--max-iterations", opts.MaxIterations, converge.DefaultMaxIterations); err != nil {
		return err
	}
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	o, err := e.oracle()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	fmt.Fprintf(e.out, "\n%s\nREQUIREMENTS GENERATION\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
	g := &converge.Generator{
		Layout:          e.layout,
		Oracle:          o,
		Review:          reviewPrompt(e, cmd.InOrStdin(), opts.Yes),
		SkipReadmeCheck: opts.SkipReadmeCheck,
		MaxIterations:   opts.MaxIterations,
		Timeout:         e.cfg.OracleTimeout(),
		Logger:          e.logger,
		Out:             e.out,
	}
	out, err := g.Run(ctx)
	if err != nil {
		if errors.Is(err, ErrStoppedForReview) {
			return WrapExitError(ExitFailure, "fix the README documents and re-run", err)
		}
		return e.exitErrorFor(err)
	}

	if opts.Format == "json" {
		return e.output.Success(map[string]any{
			"iterations":  out.Iterations,
			"fingerprint": out.Fingerprint,
		})
	}
	fmt.Fprintf(e.out, "\nRequirements generation complete after %d iteration(s)\n", out.Iterations)
	return nil
}

// reviewPrompt shows the flagged reports and waits for Enter on in. End of
// input stops the run.
func reviewPrompt(e *env, in io.Reader, yes bool) converge.ReviewFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, flagged []converge.Result) error {
		w := e.out
		fmt.Fprintf(w, "\n%s\nREADME QUALITY ISSUES DETECTED\n%s\n\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
		for _, r := range flagged {
			report := r.ReportPath
			if report == "" {
				report = e.latestReport()
			}
			fmt.Fprintf(w, "Please review the report: %s (%s)\n", report, r.Task)
		}
		if yes {
			fmt.Fprintln(w, "\nContinuing (--yes)")
			return nil
		}

		fmt.Fprintln(w, "\nPress Enter to continue if the README documents are good enough,")
		fmt.Fprintln(w, "or Ctrl-C to stop and fix them.")
		fmt.Fprint(w, "Your choice: ")

		line := make(chan error, 1)
		go func() {
			_, err := reader.ReadString('\n')
			line <- err
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-line:
			if err != nil {
				return ErrStoppedForReview
			}
		}
		fmt.Fprintln(w, "\nContinuing with requirements generation...")
		return nil
	}
}
