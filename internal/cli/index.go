package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/corpus"
	"github.com/roach88/construct/internal/coverage"
	"github.com/roach88/construct/internal/ir"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Dump bool
}

// IndexSummary is the JSON result of the index command.
type IndexSummary struct {
	Definitions int            `json:"definitions"`
	Locations   map[string]int `json:"locations"`
	Orphans     []string       `json:"orphans"`
	Untested    []string       `json:"untested"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the requirements index",
		Long: `Scan the workspace and rebuild the requirements index from scratch.

Prints the number of definitions and tag locations per category, and the
requirements that are referenced without a definition or defined without a
test. With --dump, prints both index tables as JSON lines instead.

Examples:
  construct index
  construct index --dump > index.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "print both tables as JSON lines")

	return cmd
}

func runIndex(opts *IndexOptions, cmd *cobra.Command) error {
	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	st, err := e.openIndex()
	if err != nil {
		return err
	}
	defer e.closeIndex(st)

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	idx, err := corpus.NewIndexer(e.layout, st, e.logger).Build(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build index", err)
	}

	if opts.Dump {
		if err := st.Dump(ctx, cmd.OutOrStdout()); err != nil {
			return WrapExitError(ExitFailure, "failed to dump index", err)
		}
		return nil
	}

	sum := coverage.Summarize(idx)
	result := IndexSummary{
		Definitions: sum.Definitions,
		Locations:   make(map[string]int, len(ir.Categories)),
		Orphans:     coverage.IDs(coverage.Orphans(idx)),
		Untested:    []string{},
	}
	for _, c := range ir.Categories {
		result.Locations[string(c)] = sum.Locations[c]
	}
	for _, d := range coverage.Untested(idx) {
		result.Untested = append(result.Untested, d.ID)
	}
	if result.Orphans == nil {
		result.Orphans = []string{}
	}

	if opts.Format == "json" {
		return e.output.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Index: %s\n", e.layout.Rel(st.Path()))
	fmt.Fprintf(w, "  definitions: %d\n", result.Definitions)
	for _, c := range ir.Categories {
		fmt.Fprintf(w, "  %s locations: %d\n", c, result.Locations[string(c)])
	}
	fmt.Fprintf(w, "  orphans: %d\n", len(result.Orphans))
	for _, id := range result.Orphans {
		fmt.Fprintf(w, "    - %s\n", id)
	}
	fmt.Fprintf(w, "  untested: %d\n", len(result.Untested))
	for _, id := range result.Untested {
		fmt.Fprintf(w, "    - %s\n", id)
	}
	return nil
}
