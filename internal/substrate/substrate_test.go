package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
)

func fakeAtoms() map[rune]atomlookup.Info {
	mk := func(cp rune, x float64) atomlookup.Info {
		return atomlookup.Info{
			AtomID:   identity.HashCodepoint(cp),
			PhysID:   identity.New(identity.PrefixPhysicality, []byte{byte(cp)}),
			Position: geometry.Normalize(geometry.Point{1, x, 0, 0}),
		}
	}
	return map[rune]atomlookup.Info{
		'a': mk('a', 0.1),
		'b': mk('b', 0.2),
		'c': mk('c', 0.3),
		'd': mk('d', 0.4),
	}
}

func TestComputeCompositionIsDeterministic(t *testing.T) {
	atoms := fakeAtoms()
	a := ComputeComposition("ab", atoms)
	b := ComputeComposition("ab", atoms)
	require.True(t, a.Valid)
	assert.Equal(t, a, b)
}

func TestComputeCompositionDropsUnknownCodepoints(t *testing.T) {
	atoms := fakeAtoms()
	withUnknown := ComputeComposition("a香b", atoms) // contains an unknown CJK codepoint
	known := ComputeComposition("ab", atoms)
	assert.Equal(t, known.Composition.CompID, withUnknown.Composition.CompID)
}

func TestComputeCompositionInvalidWhenNothingKnown(t *testing.T) {
	atoms := fakeAtoms()
	got := ComputeComposition("香馘", atoms)
	assert.False(t, got.Valid)
}

func TestComputeCompositionRLEGroupsRepeatedAtoms(t *testing.T) {
	atoms := fakeAtoms()
	got := ComputeComposition("aab", atoms)
	require.True(t, got.Valid)
	require.Len(t, got.Sequences, 2)
	assert.Equal(t, uint32(0), got.Sequences[0].Ordinal)
	assert.Equal(t, uint32(2), got.Sequences[0].Occurrences)
	assert.Equal(t, uint32(2), got.Sequences[1].Ordinal)
	assert.Equal(t, uint32(1), got.Sequences[1].Occurrences)
}

func TestComputeCompositionCentroidIsNormalized(t *testing.T) {
	atoms := fakeAtoms()
	got := ComputeComposition("abcd", atoms)
	require.True(t, got.Valid)
	n := got.Physicality.Centroid.Norm()
	assert.InDelta(t, 1.0, n, 1e-4)
}

func TestComputeRelationSymmetric(t *testing.T) {
	atoms := fakeAtoms()
	ca := ComputeComposition("ab", atoms).Cached
	cb := ComputeComposition("cd", atoms).Cached
	content := identity.New(identity.PrefixAtom, []byte("doc"))

	r1 := ComputeRelation(ca, cb, content, 1500.0)
	r2 := ComputeRelation(cb, ca, content, 1500.0)

	require.True(t, r1.Valid)
	require.True(t, r2.Valid)
	assert.Equal(t, r1.Relation.RelID, r2.Relation.RelID)
	assert.Equal(t, r1.Physicality.PhysID, r2.Physicality.PhysID)
	assert.Equal(t, r1.Rating, r2.Rating)
	assert.Equal(t, r1.Evidence.IsValid, r2.Evidence.IsValid)
	assert.Equal(t, r1.Evidence.SourceRating, r2.Evidence.SourceRating)
}

func TestComputeRelationDistinctness(t *testing.T) {
	atoms := fakeAtoms()
	ca := ComputeComposition("ab", atoms).Cached
	content := identity.New(identity.PrefixAtom, []byte("doc"))

	got := ComputeRelation(ca, ca, content, 1500.0)
	assert.False(t, got.Valid)
}

func TestComputeRelationInvalidOperandPropagates(t *testing.T) {
	atoms := fakeAtoms()
	ca := ComputeComposition("ab", atoms).Cached
	invalid := ComputeComposition("香", atoms).Cached
	content := identity.New(identity.PrefixAtom, []byte("doc"))

	got := ComputeRelation(ca, invalid, content, 1500.0)
	assert.False(t, got.Valid)
}

// Scenario 1 from the spec's testable-properties section: "ab ab" tokenizes
// to two identical compositions, so the only candidate relation is between
// a composition and itself and must be rejected.
func TestScenarioRepeatedTokenYieldsNoRelation(t *testing.T) {
	atoms := fakeAtoms()
	w1 := ComputeComposition("ab", atoms)
	w2 := ComputeComposition("ab", atoms)
	require.Equal(t, w1.Composition.CompID, w2.Composition.CompID)

	content := identity.New(identity.PrefixAtom, []byte("doc"))
	rel := ComputeRelation(w1.Cached, w2.Cached, content, 1500.0)
	assert.False(t, rel.Valid)
}

// Scenario 3: "ab cd ab" — the two adjacent pairs (ab,cd) and (cd,ab)
// collapse onto the same relation identity.
func TestScenarioCollapsingPairsShareRelationID(t *testing.T) {
	atoms := fakeAtoms()
	ab := ComputeComposition("ab", atoms).Cached
	cd := ComputeComposition("cd", atoms).Cached
	content := identity.New(identity.PrefixAtom, []byte("doc"))

	r1 := ComputeRelation(ab, cd, content, 1500.0)
	r2 := ComputeRelation(cd, ab, content, 1500.0)
	require.True(t, r1.Valid)
	require.True(t, r2.Valid)
	assert.Equal(t, r1.Relation.RelID, r2.Relation.RelID)
}
