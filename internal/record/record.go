// Package record defines the plain value types persisted by the substrate
// pipeline: the seven record kinds written per ingestion batch, plus the
// opaque Content reference supplied by callers.
package record

import (
	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
)

// Atom is one Unicode codepoint promoted to an identity-bearing record.
type Atom struct {
	AtomID    identity.ID
	Codepoint rune
	PhysID    identity.ID
}

// Physicality is the geometric projection shared by atoms, compositions,
// and relations: a centroid on S³, an optional decimated trajectory, and
// the Hilbert index derived from the centroid.
type Physicality struct {
	PhysID     identity.ID
	Centroid   geometry.Point
	Trajectory []geometry.Point
	Hilbert    geometry.Index
}

// Composition is an identity-bearing n-gram of atoms.
type Composition struct {
	CompID identity.ID
	PhysID identity.ID
}

// CompositionSequence records one run-length-grouped occurrence of an atom
// within a composition.
type CompositionSequence struct {
	SeqID       identity.ID
	CompID      identity.ID
	AtomID      identity.ID
	Ordinal     uint32
	Occurrences uint32
}

// Relation is an identity-bearing unordered pair of compositions observed
// together.
type Relation struct {
	RelID  identity.ID
	PhysID identity.ID
}

// RelationSequence records one of the (exactly two) compositions that make
// up a relation, at ordinal 0 or 1.
type RelationSequence struct {
	RSeqID      identity.ID
	RelID       identity.ID
	CompID      identity.ID
	Ordinal     uint32
	Occurrences uint32
}

// RelationRating is the Elo-like scalar attached to a relation. It is the
// only record kind upserted rather than inserted-or-ignored.
type RelationRating struct {
	RelID        identity.ID
	Observations uint64
	Rating       float64
	KFactor      float64
}

// RelationEvidence links one observed occurrence of a relation back to the
// content it was observed in.
type RelationEvidence struct {
	EvidenceID     identity.ID
	ContentID      identity.ID
	RelID          identity.ID
	IsValid        bool
	SourceRating   float64
	SignalStrength float64
}

// Content is the caller-supplied, opaque unit of ingested material. The
// core consumes only ContentID; every other field is carried through for
// the caller's own bookkeeping and is never interpreted by the pipeline.
type Content struct {
	ContentID identity.ID
	Tenant    string
	User      string
	Type      string
	Hash      string
	Size      int64
	MIME      string
	Lang      string
	Source    string
	Encoding  string
}

// SubstrateBatch aggregates the seven record kinds produced by one
// ingestion unit. It is a plain value: ownership transfers by copy, never
// by shared pointer, from the ingester to the flusher to the store.
type SubstrateBatch struct {
	Physicalities        []Physicality
	Compositions         []Composition
	CompositionSequences []CompositionSequence
	Relations            []Relation
	RelationSequences    []RelationSequence
	RelationRatings      []RelationRating
	RelationEvidence     []RelationEvidence
}

// Len returns the total record count across all seven kinds, used by the
// ingester's batch-threshold check.
func (b SubstrateBatch) Len() int {
	return len(b.Physicalities) + len(b.Compositions) + len(b.CompositionSequences) +
		len(b.Relations) + len(b.RelationSequences) + len(b.RelationRatings) + len(b.RelationEvidence)
}

// Append concatenates other onto b in place.
func (b *SubstrateBatch) Append(other SubstrateBatch) {
	b.Physicalities = append(b.Physicalities, other.Physicalities...)
	b.Compositions = append(b.Compositions, other.Compositions...)
	b.CompositionSequences = append(b.CompositionSequences, other.CompositionSequences...)
	b.Relations = append(b.Relations, other.Relations...)
	b.RelationSequences = append(b.RelationSequences, other.RelationSequences...)
	b.RelationRatings = append(b.RelationRatings, other.RelationRatings...)
	b.RelationEvidence = append(b.RelationEvidence, other.RelationEvidence...)
}
