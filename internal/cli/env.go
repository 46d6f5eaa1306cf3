package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/config"
	"github.com/roach88/construct/internal/converge"
	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/engine"
	"github.com/roach88/construct/internal/harness"
	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/report"
	"github.com/roach88/construct/internal/store"
)

// env is the workspace a command operates on, resolved from flags and
// config.
type env struct {
	opts   *RootOptions
	cfg    *config.Config
	layout corpus.Layout
	logger *slog.Logger
	out    io.Writer
	output *OutputFormatter
}

func loadEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)

	root, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to resolve workspace", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, NewExitError(ExitFailure, fmt.Sprintf("workspace not found: %s", root))
	}

	cfg, err := config.Load(root, opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load config", err)
	}
	if opts.Agent != "" {
		cfg.Agent = opts.Agent
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid config", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	formatter.VerboseLog("workspace: %s", root)
	formatter.VerboseLog("agent: %s (model %q)", cfg.Agent, cfg.Model)

	return &env{
		opts:   opts,
		cfg:    cfg,
		layout: cfg.Layout(root),
		logger: logger,
		out:    formatter.Progress(),
		output: formatter,
	}, nil
}

func (e *env) reports() *report.Writer {
	return report.NewWriter(e.layout.Abs(e.layout.ReportsDir))
}

func (e *env) harness() (*harness.Harness, error) {
	h := harness.New(e.layout, e.reports(), e.logger)
	h.Out = e.out

	runner, err := e.cfg.TestRunner()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid config", err)
	}
	builds, err := e.cfg.BuildRunners()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid config", err)
	}
	h.TestRunner = runner
	h.BuildRunners = builds
	h.TestTimeout = e.cfg.TestTimeout()
	h.BuildTimeout = e.cfg.BuildTimeout()
	h.GraceWindow = e.cfg.GraceWindow()
	return h, nil
}

func (e *env) oracle() (oracle.Oracle, error) {
	if e.opts.Oracle != nil {
		return e.opts.Oracle, nil
	}
	argv, err := e.cfg.OracleCommands()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid config", err)
	}
	return &oracle.CLI{
		Agent:   e.cfg.Agent,
		Model:   e.cfg.Model,
		Argv:    argv,
		Dir:     e.layout.Root,
		Grace:   e.cfg.GraceWindow(),
		Prompts: report.NewWriter(e.layout.Abs(e.layout.TmpDir)),
		Reports: e.reports(),
		Logger:  e.logger,
	}, nil
}

// openIndex opens a fresh index store under the tmp directory.
func (e *env) openIndex() (*store.Store, error) {
	if err := os.MkdirAll(e.layout.Abs(e.layout.TmpDir), 0o755); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to create tmp directory", err)
	}
	st, err := store.OpenFresh(e.layout.IndexPath())
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open index", err)
	}
	return st, nil
}

func (e *env) closeIndex(st *store.Store) {
	if closeErr := st.Close(); closeErr != nil {
		e.logger.Error("error closing index", "error", closeErr)
	}
}

func (e *env) latestReport() string {
	p, _ := report.Latest(e.layout.Abs(e.layout.ReportsDir))
	return p
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// exitErrorFor maps construction and convergence errors to exit codes.
// Messages carry the latest report when the error has none of its own.
func (e *env) exitErrorFor(err error) error {
	if err == nil {
		return nil
	}
	var (
		pe *engine.PrerequisiteError
		ae *engine.AttemptsExceededError
		ne *converge.NonConvergenceError
		xe *ExitError
	)
	switch {
	case errors.As(err, &xe):
		return xe
	case errors.As(err, &pe):
		if pe.Reason == engine.ReasonMissingReadme || pe.Reason == engine.ReasonInsufficientBuildInfo {
			return WrapExitError(ExitInsufficientDocs, "insufficient documentation", err)
		}
		return WrapExitError(ExitFailure, "missing build procedure", err)
	case errors.As(err, &ae):
		return WrapExitError(ExitAttemptsExhausted, "attempts exhausted", err)
	case errors.As(err, &ne):
		return WrapExitError(ExitNonConvergence, "requirements did not converge", e.withReport(err))
	case engine.IsInconsistencyError(err):
		return WrapExitError(ExitFailure, "inconsistent corpus", err)
	case errors.Is(err, context.Canceled):
		return WrapExitError(ExitFailure, "interrupted", err)
	default:
		return WrapExitError(ExitFailure, "construction failed", e.withReport(err))
	}
}

func (e *env) withReport(err error) error {
	if p := e.latestReport(); p != "" {
		return fmt.Errorf("%w (latest report: %s)", err, p)
	}
	return err
}
