package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/roach88/construct/internal/coverage"
	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/suite"
)

// Setup runs the setup phase. Each step is idempotent: on a workspace that
// is already set up, no oracle call is made. Returns the number of tests
// authored for untested requirements.
func (e *Engine) Setup(ctx context.Context) (int, error) {
	e.banner("SETUP PHASE")

	if err := e.ensureBuildScript(ctx); err != nil {
		return 0, err
	}
	if err := e.dedupeIDs(ctx); err != nil {
		return 0, err
	}

	idx, err := e.indexer.Build(ctx)
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	if idx, err = e.resolveOrphans(ctx, idx); err != nil {
		return 0, err
	}
	written, err := e.writeMissingTests(ctx, idx)
	if err != nil {
		return 0, err
	}
	if err := e.checkStrategy(ctx); err != nil {
		return written, err
	}
	if written > 0 {
		if err := e.orderTests(ctx); err != nil {
			return written, err
		}
	}

	e.banner("SETUP COMPLETE")
	return written, nil
}

func (e *Engine) ensureBuildScript(ctx context.Context) error {
	if _, ok := e.runner.FindBuildScript(); ok {
		return nil
	}
	item := ir.WorkItem{Kind: ir.WorkMissingBuildScript}
	e.produced(item)

	readme := e.layout.Abs(e.layout.Readme)
	if _, err := os.Stat(readme); errors.Is(err, os.ErrNotExist) {
		return &PrerequisiteError{Reason: ReasonMissingReadme, Path: e.layout.Readme}
	}

	reply, err := e.ask(ctx, LabelBuildScript, oracle.Instruction(e.layout.PromptsDir, PromptBuildScript))
	if err != nil {
		return err
	}
	if strings.Contains(reply.Text, InsufficientBuildInfo) {
		report := reply.ReportPath
		if report == "" {
			report = e.latestReport()
		}
		return &PrerequisiteError{Reason: ReasonInsufficientBuildInfo, Path: e.layout.Readme, Report: report}
	}
	script, ok := e.runner.FindBuildScript()
	if !ok {
		return &PrerequisiteError{Reason: ReasonBuildNotCreated, Path: e.layout.TestsDir + "/build.*", Report: e.latestReport()}
	}
	fmt.Fprintf(e.out, "created %s\n", script.Path)

	if _, err := e.ask(ctx, LabelArtifactsTest, oracle.Instruction(e.layout.PromptsDir, PromptBuildArtifactsTest)); err != nil {
		return err
	}
	e.consumed(item)
	return nil
}

func (e *Engine) dedupeIDs(ctx context.Context) error {
	renames, err := e.dedupe(ctx)
	if err != nil {
		return fmt.Errorf("dedupe requirement ids: %w", err)
	}
	if len(renames) == 0 {
		return nil
	}

	ids := make([]string, 0, len(renames))
	for _, r := range renames {
		ids = append(ids, r.From)
	}
	slices.Sort(ids)
	item := ir.WorkItem{Kind: ir.WorkDuplicateIDs, IDs: slices.Compact(ids)}
	e.produced(item)
	for _, r := range renames {
		fmt.Fprintf(e.out, "  renamed %s\n", r)
	}
	e.consumed(item)
	return nil
}

func (e *Engine) resolveOrphans(ctx context.Context, idx *ir.Index) (*ir.Index, error) {
	orphans := coverage.Orphans(idx)
	if len(orphans) == 0 {
		return idx, nil
	}

	item := ir.WorkItem{Kind: ir.WorkOrphanRequirement, IDs: coverage.IDs(orphans)}
	for _, o := range orphans {
		item.Locations = append(item.Locations, o.Locations...)
	}
	e.produced(item)

	if _, err := e.ask(ctx, LabelOrphans, orphanPrompt(e.layout.PromptsDir, orphans)); err != nil {
		return nil, err
	}
	idx, err := e.indexer.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if remaining := coverage.Orphans(idx); len(remaining) > 0 {
		return nil, &InconsistencyError{Kind: InconsistencyOrphans, IDs: coverage.IDs(remaining), Report: e.latestReport()}
	}
	e.consumed(item)
	return idx, nil
}

// writeMissingTests asks for one test at a time until every requirement
// has one. The loop has no iteration cap; it ends when a request does not
// produce a test for the requested id.
func (e *Engine) writeMissingTests(ctx context.Context, idx *ir.Index) (int, error) {
	written := 0
	for {
		untested := coverage.Untested(idx)
		if len(untested) == 0 {
			return written, nil
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		def := untested[0]
		item := ir.WorkItem{Kind: ir.WorkUntestedRequirement, IDs: []string{def.ID}}
		e.produced(item)
		fmt.Fprintf(e.out, "creating test for %s (%d untested)\n", def.ID, len(untested))

		if _, err := e.ask(ctx, LabelUntested, writeTestPrompt(e.layout.PromptsDir, def)); err != nil {
			return written, err
		}
		var err error
		if idx, err = e.indexer.Build(ctx); err != nil {
			return written, fmt.Errorf("build index: %w", err)
		}
		if stillUntested(idx, def.ID) {
			return written, &InconsistencyError{Kind: InconsistencyStalled, IDs: []string{def.ID}, Report: e.latestReport()}
		}
		written++
		e.consumed(item)
	}
}

func stillUntested(idx *ir.Index, id string) bool {
	if _, ok := idx.Definition(id); !ok {
		// The definition went away; nothing left to test.
		return false
	}
	for _, l := range idx.LocationsOf(id) {
		if l.Category == ir.CategoryTests {
			return false
		}
	}
	return true
}

func (e *Engine) checkStrategy(ctx context.Context) error {
	failing, err := e.suite.List(suite.Failing)
	if err != nil {
		return err
	}
	passing, err := e.suite.List(suite.Passing)
	if err != nil {
		return err
	}
	if len(failing) == 0 && len(passing) > 0 {
		return nil
	}

	item := ir.WorkItem{Kind: ir.WorkStrategyNoncompliance}
	e.produced(item)
	if _, err := e.ask(ctx, LabelStrategy, oracle.Instruction(e.layout.PromptsDir, PromptStrategy)); err != nil {
		return err
	}
	if _, err := e.indexer.Build(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	e.consumed(item)
	return nil
}

func (e *Engine) orderTests(ctx context.Context) error {
	item := ir.WorkItem{Kind: ir.WorkUnorderedTests}
	e.produced(item)
	if _, err := e.ask(ctx, LabelOrderTests, oracle.Instruction(e.layout.PromptsDir, PromptOrderTests)); err != nil {
		return err
	}
	e.consumed(item)
	return nil
}
