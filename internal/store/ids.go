package store

import (
	"context"
	"fmt"

	"github.com/hartonomous/substrate/internal/identity"
)

func (s *Store) streamIDColumn(ctx context.Context, query string, fn func(identity.ID) error) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("store: stream ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return fmt.Errorf("store: scan id: %w", err)
		}
		var id identity.ID
		copy(id[:], b)
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

// StreamCompositionIDs streams only the comp_id column, never full rows,
// for substratecache.Cache.PrePopulate.
func (s *Store) StreamCompositionIDs(ctx context.Context, fn func(identity.ID) error) error {
	return s.streamIDColumn(ctx, `SELECT comp_id FROM compositions`, fn)
}

// StreamPhysicalityIDs streams only the phys_id column.
func (s *Store) StreamPhysicalityIDs(ctx context.Context, fn func(identity.ID) error) error {
	return s.streamIDColumn(ctx, `SELECT phys_id FROM physicalities`, fn)
}

// StreamRelationIDs streams only the rel_id column.
func (s *Store) StreamRelationIDs(ctx context.Context, fn func(identity.ID) error) error {
	return s.streamIDColumn(ctx, `SELECT rel_id FROM relations`, fn)
}
