package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/record"
)

// WriteBatch opens one transaction on a dedicated connection, relaxes
// session-level integrity/durability settings for flusher throughput, and
// writes the seven record kinds in the order the spec requires:
// physicality, composition, composition-sequence, relation,
// relation-sequence, relation-rating (the only upsert), relation-evidence.
// All seven writes either all commit or all roll back together.
func (s *Store) WriteBatch(ctx context.Context, batch record.SubstrateBatch) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("store: acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SET LOCAL session_replication_role = replica`); err != nil {
		return fmt.Errorf("store: relax fk enforcement: %w", err)
	}
	if _, err := tx.Exec(ctx, `SET LOCAL synchronous_commit = off`); err != nil {
		return fmt.Errorf("store: relax commit durability: %w", err)
	}

	if err := writePhysicalities(ctx, tx, batch.Physicalities); err != nil {
		return err
	}
	if err := writeCompositions(ctx, tx, batch.Compositions); err != nil {
		return err
	}
	if err := writeCompositionSequences(ctx, tx, batch.CompositionSequences); err != nil {
		return err
	}
	if err := writeRelations(ctx, tx, batch.Relations); err != nil {
		return err
	}
	if err := writeRelationSequences(ctx, tx, batch.RelationSequences); err != nil {
		return err
	}
	if err := upsertRelationRatings(ctx, tx, batch.RelationRatings); err != nil {
		return err
	}
	if err := writeRelationEvidence(ctx, tx, batch.RelationEvidence); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// copyDedup bulk-loads n rows into a staging temp table via COPY, then
// folds them into table with an INSERT ... ON CONFLICT DO NOTHING against
// conflictCol, silently skipping primary-key duplicates. COPY itself has
// no conflict-skip mode, which is why a staging table mediates.
func copyDedup(ctx context.Context, tx pgx.Tx, table, conflictCol string, cols []string, colDDL []string, n int, rowAt func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tmp := "tmp_" + table
	ddl := make([]string, len(cols))
	for i, c := range cols {
		ddl[i] = c + " " + colDDL[i]
	}
	createTmp := fmt.Sprintf(`CREATE TEMP TABLE %s (%s) ON COMMIT DROP`, tmp, strings.Join(ddl, ", "))
	if _, err := tx.Exec(ctx, createTmp); err != nil {
		return fmt.Errorf("store: create staging table %s: %w", tmp, err)
	}

	_, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, cols, pgx.CopyFromSlice(n, func(i int) ([]any, error) {
		return rowAt(i), nil
	}))
	if err != nil {
		return fmt.Errorf("store: copy into %s: %w", tmp, err)
	}

	colList := strings.Join(cols, ", ")
	insertSQL := fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING`,
		table, colList, colList, tmp, conflictCol)
	if _, err := tx.Exec(ctx, insertSQL); err != nil {
		return fmt.Errorf("store: fold staging into %s: %w", table, err)
	}
	return nil
}

func writePhysicalities(ctx context.Context, tx pgx.Tx, rows []record.Physicality) error {
	cols := []string{"phys_id", "centroid", "hilbert_hi", "hilbert_lo", "trajectory"}
	ddl := []string{"BYTEA", "BYTEA", "BIGINT", "BIGINT", "BYTEA"}
	return copyDedup(ctx, tx, "physicalities", "phys_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.PhysID.Bytes(), r.Centroid.WKB(),
			int64(r.Hilbert.Hi), int64(r.Hilbert.Lo), geometry.TrajectoryWKB(r.Trajectory),
		}
	})
}

func writeCompositions(ctx context.Context, tx pgx.Tx, rows []record.Composition) error {
	cols := []string{"comp_id", "phys_id"}
	ddl := []string{"BYTEA", "BYTEA"}
	return copyDedup(ctx, tx, "compositions", "comp_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.CompID.Bytes(), r.PhysID.Bytes()}
	})
}

func writeCompositionSequences(ctx context.Context, tx pgx.Tx, rows []record.CompositionSequence) error {
	cols := []string{"seq_id", "comp_id", "atom_id", "ordinal", "occurrences"}
	ddl := []string{"BYTEA", "BYTEA", "BYTEA", "INTEGER", "INTEGER"}
	return copyDedup(ctx, tx, "composition_sequences", "seq_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.SeqID.Bytes(), r.CompID.Bytes(), r.AtomID.Bytes(), int32(r.Ordinal), int32(r.Occurrences)}
	})
}

func writeRelations(ctx context.Context, tx pgx.Tx, rows []record.Relation) error {
	cols := []string{"rel_id", "phys_id"}
	ddl := []string{"BYTEA", "BYTEA"}
	return copyDedup(ctx, tx, "relations", "rel_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.RelID.Bytes(), r.PhysID.Bytes()}
	})
}

func writeRelationSequences(ctx context.Context, tx pgx.Tx, rows []record.RelationSequence) error {
	cols := []string{"rseq_id", "rel_id", "comp_id", "ordinal", "occurrences"}
	ddl := []string{"BYTEA", "BYTEA", "BYTEA", "INTEGER", "INTEGER"}
	return copyDedup(ctx, tx, "relation_sequences", "rseq_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.RSeqID.Bytes(), r.RelID.Bytes(), r.CompID.Bytes(), int32(r.Ordinal), int32(r.Occurrences)}
	})
}

func writeRelationEvidence(ctx context.Context, tx pgx.Tx, rows []record.RelationEvidence) error {
	cols := []string{"ev_id", "content_id", "rel_id", "is_valid", "source_rating", "signal_strength"}
	ddl := []string{"BYTEA", "BYTEA", "BYTEA", "BOOLEAN", "DOUBLE PRECISION", "DOUBLE PRECISION"}
	return copyDedup(ctx, tx, "relation_evidence", "ev_id", cols, ddl, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.EvidenceID.Bytes(), r.ContentID.Bytes(), r.RelID.Bytes(), r.IsValid, r.SourceRating, r.SignalStrength}
	})
}

// upsertRelationRatings is the only upsert among the seven writes: on
// conflict, observations accumulate and rating becomes the
// observation-weighted average of the prior and new rating, per
// `rating <- (rating*observations + EXCLUDED.rating) / (observations + 1)`.
// This form is safe under arbitrary commit order across workers because
// each batch always contributes its rating as if it were exactly one more
// observation, regardless of how many observations the batch's own rows
// represent.
func upsertRelationRatings(ctx context.Context, tx pgx.Tx, rows []record.RelationRating) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO relation_ratings (rel_id, observations, rating, k_factor)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (rel_id) DO UPDATE SET
				rating = (relation_ratings.rating * relation_ratings.observations + EXCLUDED.rating) / (relation_ratings.observations + 1),
				observations = relation_ratings.observations + EXCLUDED.observations
		`, r.RelID.Bytes(), int64(r.Observations), r.Rating, r.KFactor)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: upsert relation rating: %w", err)
		}
	}
	return nil
}

