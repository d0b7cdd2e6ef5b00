package store

import "context"

// schemaStatements are idempotent CREATE TABLE IF NOT EXISTS statements for
// the atom table and the seven record-kind tables. Identities are stored as
// 16-byte bytea; Hilbert index words are stored as bigint, reinterpreting
// the unsigned 64-bit word as a signed one (the bit pattern round-trips
// exactly; Postgres has no native uint64). Centroid and trajectory are
// stored as the bit-exact WKB Point ZM / LineString ZM encodings
// (geometry.Point.WKB / geometry.TrajectoryWKB) rather than a PostGIS
// geometry column, so the store carries no extension dependency beyond
// core Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS atoms (
		atom_id    BYTEA PRIMARY KEY,
		codepoint  INTEGER NOT NULL UNIQUE,
		phys_id    BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS physicalities (
		phys_id      BYTEA PRIMARY KEY,
		centroid     BYTEA NOT NULL,
		hilbert_hi   BIGINT NOT NULL,
		hilbert_lo   BIGINT NOT NULL,
		trajectory   BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS compositions (
		comp_id BYTEA PRIMARY KEY,
		phys_id BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS composition_sequences (
		seq_id      BYTEA PRIMARY KEY,
		comp_id     BYTEA NOT NULL,
		atom_id     BYTEA NOT NULL,
		ordinal     INTEGER NOT NULL,
		occurrences INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relations (
		rel_id  BYTEA PRIMARY KEY,
		phys_id BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relation_sequences (
		rseq_id     BYTEA PRIMARY KEY,
		rel_id      BYTEA NOT NULL,
		comp_id     BYTEA NOT NULL,
		ordinal     INTEGER NOT NULL,
		occurrences INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relation_ratings (
		rel_id       BYTEA PRIMARY KEY,
		observations BIGINT NOT NULL,
		rating       DOUBLE PRECISION NOT NULL,
		k_factor     DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relation_evidence (
		ev_id           BYTEA PRIMARY KEY,
		content_id      BYTEA NOT NULL,
		rel_id          BYTEA NOT NULL,
		is_valid        BOOLEAN NOT NULL,
		source_rating   DOUBLE PRECISION NOT NULL,
		signal_strength DOUBLE PRECISION NOT NULL
	)`,
}

// EnsureSchema idempotently creates every table the store writes into.
// Safe to call on every startup; uses CREATE TABLE IF NOT EXISTS rather
// than a migration framework, matching this lineage's schema-evolution
// convention for tables it owns outright.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
