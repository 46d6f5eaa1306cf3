package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// dumpLine is one JSON line of a table dump.
type dumpLine struct {
	Table string `json:"table"`
	Row   any    `json:"row"`
}

// Dump writes every row of both tables as JSON lines, definitions first.
// Output is deterministic: equal index contents give equal bytes.
func (s *Store) Dump(ctx context.Context, w io.Writer) error {
	defs, err := s.Definitions(ctx)
	if err != nil {
		return err
	}
	locs, err := s.Locations(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range defs {
		if err := enc.Encode(dumpLine{Table: "req_definitions", Row: d}); err != nil {
			return fmt.Errorf("dump definitions: %w", err)
		}
	}
	for _, l := range locs {
		if err := enc.Encode(dumpLine{Table: "req_locations", Row: l}); err != nil {
			return fmt.Errorf("dump locations: %w", err)
		}
	}
	return nil
}
