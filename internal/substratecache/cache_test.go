package substratecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/substrate"
)

type fakeStreamer struct {
	compositions  []identity.ID
	physicalities []identity.ID
	relations     []identity.ID
}

func (f fakeStreamer) StreamCompositionIDs(ctx context.Context, fn func(identity.ID) error) error {
	for _, id := range f.compositions {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeStreamer) StreamPhysicalityIDs(ctx context.Context, fn func(identity.ID) error) error {
	for _, id := range f.physicalities {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeStreamer) StreamRelationIDs(ctx context.Context, fn func(identity.ID) error) error {
	for _, id := range f.relations {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func TestPrePopulateFillsAllThreeSets(t *testing.T) {
	compID := identity.New(identity.PrefixComposition, []byte("a"))
	physID := identity.New(identity.PrefixPhysicality, []byte("b"))
	relID := identity.New(identity.PrefixRelation, []byte("c"))

	c := New()
	err := c.PrePopulate(context.Background(), fakeStreamer{
		compositions:  []identity.ID{compID},
		physicalities: []identity.ID{physID},
		relations:     []identity.ID{relID},
	})
	require.NoError(t, err)

	assert.True(t, c.ExistsComposition(compID))
	assert.True(t, c.ExistsPhysicality(physID))
	assert.True(t, c.ExistsRelation(relID))
}

func TestAddReportsNewOnlyOnce(t *testing.T) {
	c := New()
	id := identity.New(identity.PrefixComposition, []byte("x"))
	assert.True(t, c.AddComposition(id))
	assert.False(t, c.AddComposition(id))
}

func TestMemoRoundTrip(t *testing.T) {
	c := New()
	cc := substrate.CachedComposition{Valid: true, CompID: identity.New(identity.PrefixComposition, []byte("y"))}
	_, ok := c.GetComposition("word")
	assert.False(t, ok)

	c.CacheComposition("word", cc)
	got, ok := c.GetComposition("word")
	require.True(t, ok)
	assert.Equal(t, cc, got)
}
