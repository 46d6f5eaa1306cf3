package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/construct/internal/ir"
)

// Rebuild replaces both index tables with the given rows in a single
// transaction. Rows are sorted before insertion.
//
// A duplicate definition id violates the primary key; Rebuild reports it
// as *ir.DuplicateIDError and leaves the previous contents in place.
func (s *Store) Rebuild(ctx context.Context, defs []ir.RequirementDefinition, locs []ir.RequirementLocation) error {
	defs = append([]ir.RequirementDefinition(nil), defs...)
	locs = append([]ir.RequirementLocation(nil), locs...)
	ir.SortDefinitions(defs)
	ir.SortLocations(locs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebuild index: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range []string{"DELETE FROM req_definitions", "DELETE FROM req_locations"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild index: clear: %w", err)
		}
	}

	defStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO req_definitions (req_id, req_text, source_attribution, origin_document)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("rebuild index: prepare definitions: %w", err)
	}
	defer defStmt.Close()

	for _, d := range defs {
		if _, err := defStmt.ExecContext(ctx, d.ID, d.Text, d.Source, d.Origin); err != nil {
			if isPrimaryKeyViolation(err) {
				return &ir.DuplicateIDError{ID: d.ID}
			}
			return fmt.Errorf("rebuild index: insert definition %s: %w", d.ID, err)
		}
	}

	locStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO req_locations (req_id, filespec, line_num, category)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("rebuild index: prepare locations: %w", err)
	}
	defer locStmt.Close()

	for _, l := range locs {
		if _, err := locStmt.ExecContext(ctx, l.ID, l.Path, l.Line, string(l.Category)); err != nil {
			return fmt.Errorf("rebuild index: insert location %s at %s: %w", l.ID, l, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rebuild index: commit: %w", err)
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Definitions returns every definition ordered by id.
func (s *Store) Definitions(ctx context.Context) ([]ir.RequirementDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT req_id, req_text, COALESCE(source_attribution, ''), origin_document
		FROM req_definitions
		ORDER BY req_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	defs := []ir.RequirementDefinition{}
	for rows.Next() {
		var d ir.RequirementDefinition
		if err := rows.Scan(&d.ID, &d.Text, &d.Source, &d.Origin); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

// Locations returns every location ordered by (path, line, id).
func (s *Store) Locations(ctx context.Context) ([]ir.RequirementLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT req_id, filespec, line_num, category
		FROM req_locations
		ORDER BY filespec COLLATE BINARY ASC, line_num ASC, req_id COLLATE BINARY ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	locs := []ir.RequirementLocation{}
	for rows.Next() {
		var (
			l   ir.RequirementLocation
			cat string
		)
		if err := rows.Scan(&l.ID, &l.Path, &l.Line, &cat); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		if l.Category, err = ir.ParseCategory(cat); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locs, nil
}

// Snapshot reads both tables into an in-memory index.
func (s *Store) Snapshot(ctx context.Context) (*ir.Index, error) {
	defs, err := s.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	locs, err := s.Locations(ctx)
	if err != nil {
		return nil, err
	}
	return ir.NewIndex(defs, locs)
}

// CountDefinitions returns the number of distinct requirement ids.
func (s *Store) CountDefinitions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT req_id) FROM req_definitions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count definitions: %w", err)
	}
	return n, nil
}
