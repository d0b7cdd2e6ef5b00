// Package batchflow implements the SubstrateBatch accumulation lifecycle:
// a mutable per-document Builder that the text and model ingesters append
// records to, and Drain, which hands the accumulated batch to the flusher
// as an independent value.
package batchflow

import "github.com/hartonomous/substrate/internal/record"

// Builder accumulates records for one ingestion unit until it is drained.
// Not safe for concurrent use; each document owns its own Builder.
type Builder struct {
	batch record.SubstrateBatch
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of records accumulated so far across all seven
// kinds.
func (b *Builder) Len() int {
	return b.batch.Len()
}

// AddPhysicality stages a physicality row.
func (b *Builder) AddPhysicality(p record.Physicality) {
	b.batch.Physicalities = append(b.batch.Physicalities, p)
}

// AddComposition stages a composition row.
func (b *Builder) AddComposition(c record.Composition) {
	b.batch.Compositions = append(b.batch.Compositions, c)
}

// AddCompositionSequences stages one or more composition-sequence rows.
func (b *Builder) AddCompositionSequences(rows ...record.CompositionSequence) {
	b.batch.CompositionSequences = append(b.batch.CompositionSequences, rows...)
}

// AddRelation stages a relation row.
func (b *Builder) AddRelation(r record.Relation) {
	b.batch.Relations = append(b.batch.Relations, r)
}

// AddRelationSequences stages one or more relation-sequence rows.
func (b *Builder) AddRelationSequences(rows ...record.RelationSequence) {
	b.batch.RelationSequences = append(b.batch.RelationSequences, rows...)
}

// AddRelationRating stages a relation-rating row.
func (b *Builder) AddRelationRating(r record.RelationRating) {
	b.batch.RelationRatings = append(b.batch.RelationRatings, r)
}

// AddRelationEvidence stages a relation-evidence row.
func (b *Builder) AddRelationEvidence(e record.RelationEvidence) {
	b.batch.RelationEvidence = append(b.batch.RelationEvidence, e)
}

// Drain returns the accumulated batch as an independent value and resets
// the builder to empty. Ownership transfers to the caller by copy; the
// builder retains no reference into the returned batch's backing arrays
// that it will mutate afterward, since the next Add* call allocates fresh
// slices via append's copy-on-grow semantics starting from nil.
func (b *Builder) Drain() record.SubstrateBatch {
	out := b.batch
	b.batch = record.SubstrateBatch{}
	return out
}
