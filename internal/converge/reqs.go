package converge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/oracle"
)

// Instruction documents and labels used by requirement generation.
const (
	PromptCheckReadmes = "req-check_readmes.md"
	PromptWriteReqs    = "WRITE_REQS.md"
	FixPromptPattern   = "req-fix_*.md"

	LabelCheckReadmes = "req-check_readmes"
	LabelWriteReqs    = "write_reqs"
)

// FixTasks lists the fix prompts of the prompts directory, sorted. Each
// task is named after its prompt file without extension.
func FixTasks(l corpus.Layout) ([]Task, error) {
	matches, err := filepath.Glob(filepath.Join(l.Abs(l.PromptsDir), FixPromptPattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	tasks := make([]Task, 0, len(matches))
	for _, m := range matches {
		file := filepath.Base(m)
		tasks = append(tasks, Task{
			Name:   strings.TrimSuffix(file, path.Ext(file)),
			Prompt: oracle.Instruction(l.PromptsDir, file),
		})
	}
	return tasks, nil
}

// Generator writes and repairs the requirement documents of a workspace.
type Generator struct {
	Layout          corpus.Layout
	Oracle          oracle.Oracle
	Review          ReviewFunc
	SkipReadmeCheck bool
	MaxIterations   int
	Timeout         time.Duration
	Logger          *slog.Logger
	Out             io.Writer
}

// Run checks the README, writes initial requirements when there are none,
// then converges the fix prompts. Duplicate ids are repaired before every
// batch.
func (g *Generator) Run(ctx context.Context) (Outcome, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := g.Out
	if out == nil {
		out = io.Discard
	}

	if err := os.MkdirAll(g.Layout.Abs(g.Layout.DocsDir), 0o755); err != nil {
		return Outcome{}, err
	}

	if g.SkipReadmeCheck {
		fmt.Fprintln(out, "skipping README quality check")
	} else if err := g.checkReadmes(ctx); err != nil {
		return Outcome{}, err
	}

	defs, err := corpus.DefinitionPaths(g.Layout)
	if err != nil {
		return Outcome{}, err
	}
	if len(defs) == 0 {
		fmt.Fprintf(out, "no requirements found in %s; writing initial requirements\n", g.Layout.DocsDir)
		if _, err := g.ask(ctx, LabelWriteReqs, oracle.Instruction(g.Layout.PromptsDir, PromptWriteReqs)); err != nil {
			return Outcome{}, err
		}
	}

	loop := &Loop{
		Oracle: g.Oracle,
		Fingerprint: func() (string, error) {
			return corpus.Fingerprint(g.Layout)
		},
		PreBatch: func(ctx context.Context) error {
			renames, err := corpus.Dedupe(ctx, g.Layout)
			if err != nil {
				return fmt.Errorf("dedupe requirement ids: %w", err)
			}
			for _, r := range renames {
				fmt.Fprintf(out, "  renamed %s\n", r)
			}
			return nil
		},
		Tasks: func() ([]Task, error) {
			return FixTasks(g.Layout)
		},
		Review:        g.Review,
		MaxIterations: g.MaxIterations,
		Timeout:       g.Timeout,
		Logger:        logger,
		Out:           out,
	}
	return loop.Run(ctx)
}

func (g *Generator) checkReadmes(ctx context.Context) error {
	reply, err := g.ask(ctx, LabelCheckReadmes, oracle.Instruction(g.Layout.PromptsDir, PromptCheckReadmes))
	if err != nil {
		return err
	}
	if NeedsReview(reply.Text) && g.Review != nil {
		return g.Review(ctx, []Result{{
			Task:          LabelCheckReadmes,
			Text:          reply.Text,
			ReportPath:    reply.ReportPath,
			ReadmeChanges: true,
		}})
	}
	return nil
}

func (g *Generator) ask(ctx context.Context, label, prompt string) (oracle.Reply, error) {
	reply, err := g.Oracle.Ask(ctx, oracle.Request{Prompt: prompt, Label: label, Timeout: g.Timeout})
	if err != nil {
		return reply, fmt.Errorf("oracle %s: %w", label, err)
	}
	return reply, nil
}
