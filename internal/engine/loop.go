package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/suite"
)

// MainLoop re-validates the suite if nothing is failing, then drives
// failing tests to passing in file name order until a fresh scan finds no
// failing test.
func (e *Engine) MainLoop(ctx context.Context) error {
	moved, err := e.suite.Revalidate()
	if err != nil {
		return fmt.Errorf("revalidate: %w", err)
	}
	if len(moved) > 0 {
		e.banner("MOVING TESTS FOR VALIDATION")
		for _, name := range moved {
			fmt.Fprintf(e.out, "  -> %s\n", name)
		}
		e.logger.Info("passing tests moved for validation", "count", len(moved))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		failing, err := e.suite.List(suite.Failing)
		if err != nil {
			return err
		}
		if len(failing) == 0 {
			break
		}
		if err := e.driveTest(ctx, failing[0]); err != nil {
			return err
		}
	}

	overlap, err := e.suite.Verify()
	if err != nil {
		return err
	}
	if len(overlap) > 0 {
		return &InconsistencyError{Kind: InconsistencyOverlap, IDs: overlap}
	}
	return nil
}

// driveTest attempts one failing test until it passes, disappears from
// failing, or runs out of attempts.
func (e *Engine) driveTest(ctx context.Context, name string) error {
	test := e.suite.Path(name, suite.Failing)
	quota := NewQuotaEnforcer(e.maxAttempts)
	e.banner("PROCESSING TEST: " + name)

	for {
		if !e.stillFailing(name) {
			fmt.Fprintf(e.out, "%s is no longer failing; moving on\n", name)
			return nil
		}
		if err := quota.Check(name); err != nil {
			var ae *AttemptsExceededError
			if errors.As(err, &ae) {
				ae.Report = e.latestReport()
			}
			return err
		}
		attempt := quota.Current()

		fmt.Fprintf(e.out, "\n%s\nTEST: %s | Attempt %d/%d\n%s\n\n", strings.Repeat("-", 60), name, attempt, e.maxAttempts, strings.Repeat("-", 60))

		if _, err := e.indexer.Build(ctx); err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		out, err := e.runner.Check(ctx, test)
		if err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}
		e.attempts = append(e.attempts, ir.Attempt{Test: name, Number: attempt, ExitCode: out.ExitCode, ReportPath: out.ReportPath})
		e.logger.Info("attempt finished", "test", name, "attempt", attempt, "exit_code", out.ExitCode, "report", out.ReportPath)

		if out.Passed() {
			if err := e.suite.Transition(name, suite.Failing, suite.Passing); err != nil {
				return err
			}
			if attempt == 1 {
				fmt.Fprintf(e.out, "%s passed on first try\n", name)
			} else {
				fmt.Fprintf(e.out, "%s passes after %d fix(es)\n", name, attempt-1)
			}
			return nil
		}

		fmt.Fprintf(e.out, "%s failed with exit code %d, asking for a fix\n", name, out.ExitCode)
		if _, err := e.ask(ctx, LabelFailingTest, fixPrompt(e.layout.PromptsDir, test, attempt, e.maxAttempts, out)); err != nil {
			return err
		}
	}
}

func (e *Engine) stillFailing(name string) bool {
	st, err := e.suite.State(name)
	return err == nil && st == suite.Failing
}
