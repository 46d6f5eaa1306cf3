package converge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/construct/internal/oracle"
)

// DefaultMaxIterations bounds a convergence run.
const DefaultMaxIterations = 5

// ReadmeChangesMarker in a response means the task could not proceed
// without changes to the source documentation.
const ReadmeChangesMarker = "**README_CHANGES_REQUIRED: true**"

// Task is one independent oracle call of a batch.
type Task struct {
	Name   string // report label and result key
	Prompt string
}

// Result is the outcome of one task.
type Result struct {
	Task          string
	Text          string
	ReportPath    string
	ReadmeChanges bool
	Err           error
}

// NeedsReview reports whether the response asked for README changes.
func NeedsReview(text string) bool {
	return strings.Contains(text, ReadmeChangesMarker)
}

// ReviewFunc is consulted when tasks flag README changes. Returning an
// error stops the run.
type ReviewFunc func(ctx context.Context, flagged []Result) error

// Loop drives batches to a fixpoint.
type Loop struct {
	Oracle oracle.Oracle

	// Fingerprint hashes the documents the tasks edit.
	Fingerprint func() (string, error)

	// PreBatch runs serially before every batch. Optional.
	PreBatch func(ctx context.Context) error

	// Tasks lists the batch. It is called once per iteration so new fix
	// prompts are picked up.
	Tasks func() ([]Task, error)

	// Review is called with the flagged results of a batch. Optional;
	// when nil, flags are logged and the loop continues.
	Review ReviewFunc

	// MaxIterations may lower the bound; zero or anything above
	// DefaultMaxIterations uses the default.
	MaxIterations int
	Timeout       time.Duration // per oracle call
	Logger        *slog.Logger
	Out           io.Writer
}

// Outcome describes a converged run.
type Outcome struct {
	Iterations  int
	Fingerprint string
}

// NonConvergenceError is returned when the fingerprint is still changing
// after the iteration bound.
type NonConvergenceError struct {
	Iterations int
	Last       string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("requirements still changing after %d iterations", e.Iterations)
}

// IsNonConvergence reports whether err is a NonConvergenceError.
func IsNonConvergence(err error) bool {
	var ne *NonConvergenceError
	return errors.As(err, &ne)
}

// BatchError lists the tasks of a batch that failed. Every task of the
// batch ran to completion.
type BatchError struct {
	Failed []string
	Errs   map[string]error
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, name := range e.Failed {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Errs[name])
	}
	return fmt.Sprintf("%d fix task(s) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loop) out() io.Writer {
	if l.Out == nil {
		return io.Discard
	}
	return l.Out
}

func (l *Loop) maxIterations() int {
	if l.MaxIterations <= 0 || l.MaxIterations > DefaultMaxIterations {
		return DefaultMaxIterations
	}
	return l.MaxIterations
}

// Run iterates until a batch leaves the fingerprint unchanged.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	limit := l.maxIterations()
	var last string

	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		fmt.Fprintf(l.out(), "\n%s\nVALIDATION/FIX ITERATION %d\n%s\n\n", strings.Repeat("=", 60), i, strings.Repeat("=", 60))

		before, err := l.Fingerprint()
		if err != nil {
			return Outcome{}, fmt.Errorf("fingerprint: %w", err)
		}
		fmt.Fprintf(l.out(), "-> signature before: %s\n", before)

		if l.PreBatch != nil {
			if err := l.PreBatch(ctx); err != nil {
				return Outcome{}, err
			}
		}

		tasks, err := l.Tasks()
		if err != nil {
			return Outcome{}, fmt.Errorf("list fix tasks: %w", err)
		}
		results, err := l.RunBatch(ctx, tasks)
		if err != nil {
			return Outcome{}, err
		}
		if err := l.review(ctx, results); err != nil {
			return Outcome{}, err
		}

		after, err := l.Fingerprint()
		if err != nil {
			return Outcome{}, fmt.Errorf("fingerprint: %w", err)
		}
		fmt.Fprintf(l.out(), "-> signature after: %s\n", after)
		l.logger().Info("convergence iteration", "iteration", i, "tasks", len(tasks), "changed", before != after)

		if before == after {
			fmt.Fprintf(l.out(), "\nNo changes detected. Total validation iterations: %d\n", i)
			return Outcome{Iterations: i, Fingerprint: after}, nil
		}
		last = after
	}
	return Outcome{}, &NonConvergenceError{Iterations: limit, Last: last}
}

// RunBatch runs every task concurrently and waits for all of them.
// Results are keyed by task name. Any failed task fails the batch with a
// BatchError, after the others have finished.
func (l *Loop) RunBatch(ctx context.Context, tasks []Task) (map[string]Result, error) {
	results := make(map[string]Result, len(tasks))
	if len(tasks) == 0 {
		l.logger().Warn("no fix tasks found")
		return results, nil
	}

	fmt.Fprintf(l.out(), "running %d fix task(s) in parallel\n", len(tasks))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(len(tasks))

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			fmt.Fprintf(l.out(), "  -> starting: %s\n", t.Name)
			reply, err := l.Oracle.Ask(ctx, oracle.Request{Prompt: t.Prompt, Label: t.Name, Timeout: l.Timeout})
			res := Result{
				Task:          t.Name,
				Text:          reply.Text,
				ReportPath:    reply.ReportPath,
				ReadmeChanges: err == nil && NeedsReview(reply.Text),
				Err:           err,
			}

			mu.Lock()
			results[t.Name] = res
			mu.Unlock()

			if err != nil {
				fmt.Fprintf(l.out(), "  x failed: %s - %v\n", t.Name, err)
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			fmt.Fprintf(l.out(), "  <- finished: %s\n", t.Name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		be := &BatchError{Errs: make(map[string]error)}
		for name, r := range results {
			if r.Err != nil {
				be.Failed = append(be.Failed, name)
				be.Errs[name] = r.Err
			}
		}
		sort.Strings(be.Failed)
		return results, be
	}
	return results, nil
}

func (l *Loop) review(ctx context.Context, results map[string]Result) error {
	var flagged []Result
	for _, r := range results {
		if r.ReadmeChanges {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Task < flagged[j].Task })

	names := make([]string, len(flagged))
	for i, r := range flagged {
		names[i] = r.Task
	}
	l.logger().Warn("README changes required", "tasks", names)
	if l.Review == nil {
		return nil
	}
	return l.Review(ctx, flagged)
}
