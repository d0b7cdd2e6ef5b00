package batchflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/record"
)

func TestBuilderAccumulatesAndDrains(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, 0, b.Len())

	compID := identity.New(identity.PrefixComposition, []byte("x"))
	b.AddComposition(record.Composition{CompID: compID})
	b.AddPhysicality(record.Physicality{PhysID: identity.New(identity.PrefixPhysicality, []byte("p"))})
	require.Equal(t, 2, b.Len())

	batch := b.Drain()
	assert.Len(t, batch.Compositions, 1)
	assert.Len(t, batch.Physicalities, 1)
	assert.Equal(t, 0, b.Len(), "builder resets after drain")
}

func TestDrainReturnsIndependentValue(t *testing.T) {
	b := NewBuilder()
	b.AddComposition(record.Composition{CompID: identity.New(identity.PrefixComposition, []byte("a"))})
	first := b.Drain()

	b.AddComposition(record.Composition{CompID: identity.New(identity.PrefixComposition, []byte("b"))})
	second := b.Drain()

	require.Len(t, first.Compositions, 1)
	require.Len(t, second.Compositions, 1)
	assert.NotEqual(t, first.Compositions[0].CompID, second.Compositions[0].CompID)
}
