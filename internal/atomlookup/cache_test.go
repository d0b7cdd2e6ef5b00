package atomlookup

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/identity"
)

type fakeReader struct {
	mu      sync.Mutex
	all     map[rune]Info
	queries int
}

func (f *fakeReader) StreamAtoms(ctx context.Context, fn func(rune, Info) error) error {
	for cp, info := range f.all {
		if err := fn(cp, info); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReader) LookupMissing(ctx context.Context, cps []rune) (map[rune]Info, error) {
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()
	out := make(map[rune]Info)
	for _, cp := range cps {
		if info, ok := f.all[cp]; ok {
			out[cp] = info
		}
	}
	return out, nil
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		all: map[rune]Info{
			'a': {AtomID: identity.New(identity.PrefixAtom, []byte{0x61})},
			'b': {AtomID: identity.New(identity.PrefixAtom, []byte{0x62})},
		},
	}
}

func TestPreloadAllPopulatesCache(t *testing.T) {
	r := newFakeReader()
	c := New(r)
	require.NoError(t, c.PreloadAll(context.Background()))

	info, ok, err := c.Lookup(context.Background(), 'a')
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.all['a'].AtomID, info.AtomID)
}

func TestPreloadAllRunsOnce(t *testing.T) {
	r := newFakeReader()
	c := New(r)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.PreloadAll(context.Background())
		}()
	}
	wg.Wait()
	_, ok, err := c.Lookup(context.Background(), 'b')
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupMissReturnsFalseForUnknownCodepoint(t *testing.T) {
	r := newFakeReader()
	c := New(r)
	_, ok, err := c.Lookup(context.Background(), '香')
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupCachesMissFill(t *testing.T) {
	r := newFakeReader()
	c := New(r)
	_, _, err := c.Lookup(context.Background(), 'a')
	require.NoError(t, err)
	_, _, err = c.Lookup(context.Background(), 'a')
	require.NoError(t, err)
	assert.Equal(t, 1, r.queries, "second lookup should hit the in-memory cache, not query again")
}

func TestLookupBatchSplitsHitsAndMisses(t *testing.T) {
	r := newFakeReader()
	c := New(r)
	require.NoError(t, c.PreloadAll(context.Background()))

	out, err := c.LookupBatch(context.Background(), []rune{'a', 'b', '香'})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, rune('a'))
	assert.Contains(t, out, rune('b'))
}
