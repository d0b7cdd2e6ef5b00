// Package substrate implements the two pure, stateless compute functions
// that turn ingester input into geometrically-indexed records:
// ComputeComposition and ComputeRelation. Neither performs I/O or reads
// package-level mutable state; given identical inputs, both produce
// byte-identical outputs, which is the basis of the pipeline's determinism
// and symmetry guarantees.
package substrate

import (
	"encoding/binary"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/record"
)

// CachedComposition is the minimal projection of a computed composition
// that the substrate cache memoizes and ComputeRelation consumes: just
// enough to derive a relation's identity and geometry without re-reading
// the full record set.
type CachedComposition struct {
	Valid    bool
	CompID   identity.ID
	Centroid geometry.Point
}

// ComputedComposition is the full output of ComputeComposition: the
// composition and physicality records ready for batch staging, the
// composition-sequence rows, and the cached projection used for later
// relation computation.
type ComputedComposition struct {
	Valid       bool
	Cached      CachedComposition
	Composition record.Composition
	Physicality record.Physicality
	Sequences   []record.CompositionSequence
}

func ordinalLE(ordinal uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], ordinal)
	return b[:]
}

// ComputeComposition decodes text into codepoints, drops any codepoint
// absent from atoms, and derives the composition's identity, centroid
// physicality, and run-length-grouped sequence rows. If no codepoint in
// text is known to atoms, it returns a zero-value, invalid result.
func ComputeComposition(text string, atoms map[rune]atomlookup.Info) ComputedComposition {
	type resolved struct {
		atomID   identity.ID
		physID   identity.ID
		position geometry.Point
	}

	var known []resolved
	for _, cp := range text {
		info, ok := atoms[cp]
		if !ok {
			continue
		}
		known = append(known, resolved{atomID: info.AtomID, physID: info.PhysID, position: info.Position})
	}
	if len(known) == 0 {
		return ComputedComposition{}
	}

	atomIDBytes := make([][]byte, len(known))
	positions := make([]geometry.Point, len(known))
	for i, k := range known {
		atomIDBytes[i] = k.atomID.Bytes()
		positions[i] = k.position
	}
	compID := identity.New(identity.PrefixComposition, atomIDBytes...)

	centroid := geometry.Centroid(positions...)
	trajBytes := concatPointBytes(positions)
	physID := identity.New(identity.PrefixPhysicality, centroid.Bytes(), trajBytes)
	hilbert := geometry.Encode(centroid, geometry.EntityComposition)

	var sequences []record.CompositionSequence
	start := 0
	for start < len(known) {
		end := start + 1
		for end < len(known) && known[end].atomID == known[start].atomID {
			end++
		}
		ordinal := uint32(start)
		occurrences := uint32(end - start)
		seqID := identity.New(identity.PrefixCompositionSequence, compID.Bytes(), known[start].atomID.Bytes(), ordinalLE(ordinal))
		sequences = append(sequences, record.CompositionSequence{
			SeqID:       seqID,
			CompID:      compID,
			AtomID:      known[start].atomID,
			Ordinal:     ordinal,
			Occurrences: occurrences,
		})
		start = end
	}

	return ComputedComposition{
		Valid: true,
		Cached: CachedComposition{
			Valid:    true,
			CompID:   compID,
			Centroid: centroid,
		},
		Composition: record.Composition{CompID: compID, PhysID: physID},
		Physicality: record.Physicality{
			PhysID:     physID,
			Centroid:   centroid,
			Trajectory: geometry.Decimate(positions),
			Hilbert:    hilbert,
		},
		Sequences: sequences,
	}
}

// ComputedRelation is the full output of ComputeRelation.
type ComputedRelation struct {
	Valid       bool
	Relation    record.Relation
	Physicality record.Physicality
	Sequences   []record.RelationSequence
	Rating      record.RelationRating
	Evidence    record.RelationEvidence
}

// ComputeRelation derives a relation between two compositions observed
// together in contentID. Invalid if either operand is invalid or the two
// compositions are identical (a relation to oneself). The pair is ordered
// by lexicographic comp_id comparison before any identity or geometry is
// derived, which is what makes the result symmetric in (a, b).
func ComputeRelation(a, b CachedComposition, contentID identity.ID, baseRating float64) ComputedRelation {
	if !a.Valid || !b.Valid || a.CompID == b.CompID {
		return ComputedRelation{}
	}

	first, second := a, b
	if second.CompID.Less(first.CompID) {
		first, second = second, first
	}

	relID := identity.New(identity.PrefixRelation, first.CompID.Bytes(), second.CompID.Bytes())

	centroid := geometry.Centroid(first.Centroid, second.Centroid)
	trajectory := []geometry.Point{first.Centroid, second.Centroid}
	trajBytes := concatPointBytes(trajectory)
	physID := identity.New(identity.PrefixPhysicality, centroid.Bytes(), trajBytes)
	hilbert := geometry.Encode(centroid, geometry.EntityRelation)

	sequences := []record.RelationSequence{
		{
			RSeqID:      identity.New(identity.PrefixRelationSequence, relID.Bytes(), first.CompID.Bytes(), ordinalLE(0)),
			RelID:       relID,
			CompID:      first.CompID,
			Ordinal:     0,
			Occurrences: 1,
		},
		{
			RSeqID:      identity.New(identity.PrefixRelationSequence, relID.Bytes(), second.CompID.Bytes(), ordinalLE(1)),
			RelID:       relID,
			CompID:      second.CompID,
			Ordinal:     1,
			Occurrences: 1,
		},
	}

	rating := record.RelationRating{
		RelID:        relID,
		Observations: 1,
		Rating:       baseRating,
		KFactor:      32.0,
	}

	evidence := record.RelationEvidence{
		EvidenceID:     identity.Of(contentID.Bytes(), relID.Bytes()),
		ContentID:      contentID,
		RelID:          relID,
		IsValid:        true,
		SourceRating:   baseRating,
		SignalStrength: 1.0,
	}

	return ComputedRelation{
		Valid:    true,
		Relation: record.Relation{RelID: relID, PhysID: physID},
		Physicality: record.Physicality{
			PhysID:     physID,
			Centroid:   centroid,
			Trajectory: geometry.Decimate(trajectory),
			Hilbert:    hilbert,
		},
		Sequences: sequences,
		Rating:    rating,
		Evidence:  evidence,
	}
}

func concatPointBytes(points []geometry.Point) []byte {
	out := make([]byte, 0, len(points)*32)
	for _, p := range points {
		out = append(out, p.Bytes()...)
	}
	return out
}
