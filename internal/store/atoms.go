package store

import (
	"context"
	"fmt"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
)

// AtomSeed is one atom row plus the physicality it references, used to
// bootstrap the atom table. Seeding the table from Unicode Character
// Database data is an external collaborator's responsibility; this is
// just the write path that collaborator (or a test) calls.
type AtomSeed struct {
	Codepoint rune
	AtomID    identity.ID
	PhysID    identity.ID
	Position  geometry.Point
	Hilbert   geometry.Index
}

// WriteAtoms upserts atom and physicality rows for each seed, ignoring
// rows that already exist.
func (s *Store) WriteAtoms(ctx context.Context, seeds []AtomSeed) error {
	if len(seeds) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, seed := range seeds {
		_, err := tx.Exec(ctx, `
			INSERT INTO physicalities (phys_id, centroid, hilbert_hi, hilbert_lo, trajectory)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (phys_id) DO NOTHING
		`, seed.PhysID.Bytes(), seed.Position.WKB(), int64(seed.Hilbert.Hi), int64(seed.Hilbert.Lo), geometry.TrajectoryWKB(nil))
		if err != nil {
			return fmt.Errorf("store: write atom physicality: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO atoms (atom_id, codepoint, phys_id) VALUES ($1, $2, $3)
			ON CONFLICT (codepoint) DO NOTHING
		`, seed.AtomID.Bytes(), int32(seed.Codepoint), seed.PhysID.Bytes())
		if err != nil {
			return fmt.Errorf("store: write atom: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// StreamAtoms streams every row in the atom table, joined against its
// physicality, calling fn once per row. Used by atomlookup.Cache.PreloadAll
// for a constant-memory full-table read.
func (s *Store) StreamAtoms(ctx context.Context, fn func(cp rune, info atomlookup.Info) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT a.codepoint, a.atom_id, a.phys_id, p.centroid, p.hilbert_hi, p.hilbert_lo
		FROM atoms a JOIN physicalities p ON p.phys_id = a.phys_id
	`)
	if err != nil {
		return fmt.Errorf("store: stream atoms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cp int32
		var atomIDBytes, physIDBytes, centroidWKB []byte
		var hi, lo int64
		if err := rows.Scan(&cp, &atomIDBytes, &physIDBytes, &centroidWKB, &hi, &lo); err != nil {
			return fmt.Errorf("store: scan atom row: %w", err)
		}
		position, err := geometry.PointFromWKB(centroidWKB)
		if err != nil {
			return fmt.Errorf("store: decode atom centroid: %w", err)
		}
		info := atomlookup.Info{
			Position: position,
			Hilbert:  geometry.Index{Hi: uint64(hi), Lo: uint64(lo)},
		}
		copy(info.AtomID[:], atomIDBytes)
		copy(info.PhysID[:], physIDBytes)
		if err := fn(rune(cp), info); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LookupMissing queries the atom table for exactly the codepoints in cps,
// returning a dense map over the hit subset.
func (s *Store) LookupMissing(ctx context.Context, cps []rune) (map[rune]atomlookup.Info, error) {
	if len(cps) == 0 {
		return map[rune]atomlookup.Info{}, nil
	}
	ints := make([]int32, len(cps))
	for i, cp := range cps {
		ints[i] = int32(cp)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.codepoint, a.atom_id, a.phys_id, p.centroid, p.hilbert_hi, p.hilbert_lo
		FROM atoms a JOIN physicalities p ON p.phys_id = a.phys_id
		WHERE a.codepoint = ANY($1)
	`, ints)
	if err != nil {
		return nil, fmt.Errorf("store: lookup missing: %w", err)
	}
	defer rows.Close()

	out := make(map[rune]atomlookup.Info, len(cps))
	for rows.Next() {
		var cp int32
		var atomIDBytes, physIDBytes, centroidWKB []byte
		var hi, lo int64
		if err := rows.Scan(&cp, &atomIDBytes, &physIDBytes, &centroidWKB, &hi, &lo); err != nil {
			return nil, fmt.Errorf("store: scan lookup row: %w", err)
		}
		position, err := geometry.PointFromWKB(centroidWKB)
		if err != nil {
			return nil, fmt.Errorf("store: decode lookup centroid: %w", err)
		}
		info := atomlookup.Info{
			Position: position,
			Hilbert:  geometry.Index{Hi: uint64(hi), Lo: uint64(lo)},
		}
		copy(info.AtomID[:], atomIDBytes)
		copy(info.PhysID[:], physIDBytes)
		out[rune(cp)] = info
	}
	return out, rows.Err()
}
