package corpus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/construct/internal/coverage"
	"github.com/roach88/construct/internal/extract"
	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/store"
)

// Indexer rebuilds the requirement index from the workspace.
type Indexer struct {
	Layout Layout
	Store  *store.Store
	Logger *slog.Logger
}

// NewIndexer returns an indexer writing to st. A nil logger means
// slog.Default.
func NewIndexer(l Layout, st *store.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{Layout: l, Store: st, Logger: logger}
}

// Build loads the corpus, extracts it, replaces the stored tables and
// returns a snapshot of the result.
func (ix *Indexer) Build(ctx context.Context) (*ir.Index, error) {
	c, warns, err := Load(ctx, ix.Layout)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	res := extract.Extract(c)
	warns = append(warns, res.Warnings...)
	for _, w := range warns {
		ix.Logger.Warn("skipped input", "where", w.String())
	}

	if err := ix.Store.Rebuild(ctx, res.Definitions, res.Locations); err != nil {
		return nil, err
	}

	idx, err := ix.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sum := coverage.Summarize(idx)
	ix.Logger.Info("requirements index built",
		"path", ix.Store.Path(),
		"definitions", sum.Definitions,
		"docs", sum.Locations[ir.CategoryDocs],
		"tests", sum.Locations[ir.CategoryTests],
		"code", sum.Locations[ir.CategoryCode],
		"warnings", len(warns),
	)
	return idx, nil
}
