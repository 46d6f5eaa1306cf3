package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/harness"
	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/report"
	"github.com/roach88/construct/internal/suite"
)

// Indexer rebuilds the requirement index from the workspace.
type Indexer interface {
	Build(ctx context.Context) (*ir.Index, error)
}

// TestRunner is the part of the harness the engine drives.
type TestRunner interface {
	FindBuildScript() (harness.BuildScript, bool)
	Check(ctx context.Context, test string) (harness.Outcome, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Layout  corpus.Layout
	Indexer Indexer
	Oracle  oracle.Oracle
	Runner  TestRunner
	Suite   *suite.Suite
	Logger  *slog.Logger
	Out     io.Writer // operator-facing progress
}

// Engine is the construction state machine.
type Engine struct {
	layout  corpus.Layout
	indexer Indexer
	oracle  oracle.Oracle
	runner  TestRunner
	suite   *suite.Suite
	logger  *slog.Logger
	out     io.Writer
	runIDs  RunIDGenerator

	maxAttempts   int
	oracleTimeout time.Duration
	dedupe        func(context.Context) ([]corpus.Rename, error)

	attempts []ir.Attempt
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxAttempts lowers the attempt limit per failing test. Values outside
// 1..DefaultMaxAttempts are ignored.
//
// Default: 10 attempts (DefaultMaxAttempts)
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 && n <= DefaultMaxAttempts {
			e.maxAttempts = n
		}
	}
}

// WithOracleTimeout bounds each oracle call.
func WithOracleTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.oracleTimeout = d
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an Engine.
func New(d Deps, opts ...EngineOption) *Engine {
	e := &Engine{
		layout:        d.Layout,
		indexer:       d.Indexer,
		oracle:        d.Oracle,
		runner:        d.Runner,
		suite:         d.Suite,
		logger:        d.Logger,
		out:           d.Out,
		runIDs:        UUIDv7Generator{},
		maxAttempts:   DefaultMaxAttempts,
		oracleTimeout: oracle.DefaultTimeout,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.out == nil {
		e.out = io.Discard
	}
	e.dedupe = func(ctx context.Context) ([]corpus.Rename, error) {
		return corpus.Dedupe(ctx, e.layout)
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary describes a successful run.
type Summary struct {
	RunID        string
	Requirements int
	Passing      int
	TestsWritten int
	Attempts     []ir.Attempt
}

// Run executes setup and then the main loop until no test is failing.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	runID := e.runIDs.Generate()
	e.logger = e.logger.With("run", runID)
	e.attempts = nil
	e.banner("SOFTWARE CONSTRUCTION")
	e.logger.Info("run started", "root", e.layout.Root)

	written, err := e.Setup(ctx)
	if err != nil {
		return Summary{}, err
	}
	if err := e.MainLoop(ctx); err != nil {
		return Summary{}, err
	}

	idx, err := e.indexer.Build(ctx)
	if err != nil {
		return Summary{}, err
	}
	passing, err := e.suite.List(suite.Passing)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		RunID:        runID,
		Requirements: len(idx.Definitions),
		Passing:      len(passing),
		TestsWritten: written,
		Attempts:     append([]ir.Attempt(nil), e.attempts...),
	}
	e.banner("ALL TESTS PASSING")
	fmt.Fprintf(e.out, "All requirements have been implemented and tested!\n\n")
	fmt.Fprintf(e.out, "  Requirements implemented: %d\n", sum.Requirements)
	fmt.Fprintf(e.out, "  Tests passing: %d\n", sum.Passing)
	e.logger.Info("run finished", "requirements", sum.Requirements, "passing", sum.Passing, "attempts", len(sum.Attempts))
	return sum, nil
}

func (e *Engine) banner(title string) {
	line := strings.Repeat("=", 60)
	fmt.Fprintf(e.out, "\n%s\n%s\n%s\n\n", line, title, line)
}

// ask sends one prompt and wraps failures with the phase that asked.
func (e *Engine) ask(ctx context.Context, label, prompt string) (oracle.Reply, error) {
	fmt.Fprintf(e.out, "-> asking oracle: %s\n", label)
	reply, err := e.oracle.Ask(ctx, oracle.Request{
		Prompt:  prompt,
		Label:   label,
		Timeout: e.oracleTimeout,
	})
	if err != nil {
		return reply, fmt.Errorf("oracle %s: %w", label, err)
	}
	fmt.Fprintf(e.out, "<- oracle finished: %s\n", label)
	return reply, nil
}

func (e *Engine) produced(item ir.WorkItem) {
	e.logger.Info("work item", "kind", item.Kind, "ids", item.IDs)
	e.banner("WORK ITEM: " + string(item.Kind))
}

func (e *Engine) consumed(item ir.WorkItem) {
	e.logger.Debug("work item consumed", "kind", item.Kind, "ids", item.IDs)
}

// latestReport returns the newest report path for fatal messages. Errors
// listing the directory only lose the pointer.
func (e *Engine) latestReport() string {
	p, err := report.Latest(e.layout.Abs(e.layout.ReportsDir))
	if err != nil {
		e.logger.Warn("could not locate latest report", "error", err)
	}
	return p
}
