package modelingest

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/flusher"
	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/objectstore"
	"github.com/hartonomous/substrate/internal/record"
	"github.com/hartonomous/substrate/internal/substratecache"
)

type fakeAtomReader struct {
	all map[rune]atomlookup.Info
}

func (r *fakeAtomReader) StreamAtoms(ctx context.Context, fn func(rune, atomlookup.Info) error) error {
	for cp, info := range r.all {
		if err := fn(cp, info); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAtomReader) LookupMissing(ctx context.Context, cps []rune) (map[rune]atomlookup.Info, error) {
	out := make(map[rune]atomlookup.Info)
	for _, cp := range cps {
		if info, ok := r.all[cp]; ok {
			out[cp] = info
		}
	}
	return out, nil
}

func newFakeAtoms(vocab string) *fakeAtomReader {
	r := &fakeAtomReader{all: make(map[rune]atomlookup.Info)}
	i := 0
	for _, cp := range vocab {
		if _, ok := r.all[cp]; ok {
			continue
		}
		r.all[cp] = atomlookup.Info{
			AtomID:   identity.HashCodepoint(cp),
			PhysID:   identity.New(identity.PrefixPhysicality, []byte{byte(i)}),
			Position: geometry.Normalize(geometry.Point{float64(i + 1), 1, 0, 0}),
		}
		i++
	}
	return r
}

type capturingWriter struct {
	mu      sync.Mutex
	batches []record.SubstrateBatch
}

func (w *capturingWriter) WriteBatch(_ context.Context, batch record.SubstrateBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, batch)
	return nil
}

func noDeadlock(error) bool { return false }

func newTestIngester(t *testing.T, vocab string) (*Ingester, *capturingWriter) {
	t.Helper()
	w := &capturingWriter{}
	fl := flusher.New(w, noDeadlock, flusher.Options{Workers: 1, QueueCapacity: 4, DeadlockRetries: 1, Logger: zerolog.Nop()})
	t.Cleanup(fl.Shutdown)
	ig := New(atomlookup.New(newFakeAtoms(vocab)), substratecache.New(), fl, Options{})
	return ig, w
}

func TestIngestModelEmitsCompositionsAndSimilarRelations(t *testing.T) {
	store := objectstore.NewMemoryStore()
	vocab := []string{"cat", "kitten", "truck"}
	require.NoError(t, WriteModelPackage(context.Background(), store, "pkg", vocab, [][]float32{
		{1, 0, 0},
		{0.95, 0.05, 0}, // near "cat"
		{0, 0, 1},       // orthogonal to both
	}))

	ig, w := newTestIngester(t, "catkitentruck")
	stats, err := ig.IngestModel(context.Background(), store, "pkg", 0)
	require.NoError(t, err)
	ig.flush.WaitAll()

	assert.Equal(t, int64(3), stats.CompositionsNew)
	assert.Equal(t, int64(1), stats.RelationsNew) // only cat<->kitten clears the 0.40 floor

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0].Relations, 1)
	assert.Len(t, w.batches[0].RelationRatings, 1)
}

func TestIngestModelRejectsMismatchedVocabAndMatrixSize(t *testing.T) {
	store := objectstore.NewMemoryStore()
	require.NoError(t, WriteModelPackage(context.Background(), store, "pkg", []string{"a", "b"}, [][]float32{{1, 0}}))

	ig, _ := newTestIngester(t, "ab")
	_, err := ig.IngestModel(context.Background(), store, "pkg", 0)
	assert.Error(t, err)
}

func TestIngestModelAppliesLayerShape(t *testing.T) {
	store := objectstore.NewMemoryStore()
	require.NoError(t, WriteModelPackage(context.Background(), store, "pkg", []string{"a", "b"}, [][]float32{
		{1, 0}, {1, 0},
	}))

	w := &capturingWriter{}
	fl := flusher.New(w, noDeadlock, flusher.Options{Workers: 1, QueueCapacity: 4, DeadlockRetries: 1, Logger: zerolog.Nop()})
	defer fl.Shutdown()
	ig := New(atomlookup.New(newFakeAtoms("ab")), substratecache.New(), fl, Options{
		BaseRating: 1200,
		Shape:      func(layer int) float64 { return 0.5 },
	})

	_, err := ig.IngestModel(context.Background(), store, "pkg", 2)
	require.NoError(t, err)
	fl.WaitAll()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.batches, 1)
	require.Len(t, w.batches[0].RelationRatings, 1)
	assert.InDelta(t, 600.0, w.batches[0].RelationRatings[0].Rating, 0.001)
}

func TestTopNeighborsRespectsMaxK(t *testing.T) {
	sim := cosineSimilarity(4, 2, []float64{1, 0, 0.9, 0.1, 0.8, 0.2, 0.7, 0.3})
	out := topNeighbors(sim, 0, 0.0, 2)
	assert.Len(t, out, 2)
}
