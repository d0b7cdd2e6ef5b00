package textingest

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

func newFakeAtoms() *fakeAtomReader {
	letters := "catdog"
	r := &fakeAtomReader{all: make(map[rune]atomlookup.Info)}
	for i, cp := range letters {
		r.all[cp] = atomlookup.Info{
			AtomID:   identity.HashCodepoint(cp),
			PhysID:   identity.New(identity.PrefixPhysicality, []byte{byte(i)}),
			Position: geometry.Normalize(geometry.Point{float64(i + 1), 1, 0, 0}),
		}
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

func newTestIngester(t *testing.T) (*Ingester, *capturingWriter) {
	t.Helper()
	w := &capturingWriter{}
	fl := flusher.New(w, noDeadlock, flusher.Options{Workers: 2, QueueCapacity: 8, DeadlockRetries: 2, Logger: zerolog.Nop()})
	t.Cleanup(fl.Shutdown)
	ig := New(atomlookup.New(newFakeAtoms()), substratecache.New(), fl, Options{})
	return ig, w
}

func TestIngestTextStagesNewCompositionsAndRelation(t *testing.T) {
	ig, w := newTestIngester(t)
	callStats, err := ig.IngestText(context.Background(), identity.New(identity.PrefixAtom, []byte("content-1")), "cat dog")
	require.NoError(t, err)
	ig.FlushWait()

	assert.Equal(t, int64(2), callStats.CompositionsNew)
	assert.Equal(t, int64(1), callStats.RelationsNew)
	assert.Equal(t, int64(6), callStats.AtomsNew)
	assert.EqualValues(t, len("cat dog"), callStats.OriginalBytes)

	snap := ig.Stats()
	assert.Equal(t, int64(2), snap.CompositionsNew)
	assert.Equal(t, int64(1), snap.RelationsNew)
	assert.Equal(t, int64(6), snap.AtomsNew)
	assert.EqualValues(t, len("cat dog"), snap.OriginalBytes)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0].Compositions, 2)
	assert.Len(t, w.batches[0].Relations, 1)
	assert.Len(t, w.batches[0].RelationRatings, 1)
	assert.Len(t, w.batches[0].RelationEvidence, 1)
}

func TestIngestTextDedupesCompositionsAcrossCalls(t *testing.T) {
	ig, w := newTestIngester(t)
	ctx := context.Background()
	contentID := identity.New(identity.PrefixAtom, []byte("content-2"))

	first, err := ig.IngestText(ctx, contentID, "cat")
	require.NoError(t, err)
	second, err := ig.IngestText(ctx, contentID, "cat")
	require.NoError(t, err)
	ig.FlushWait()

	assert.Equal(t, int64(1), first.CompositionsNew)
	assert.Equal(t, int64(0), second.CompositionsNew)
	assert.Equal(t, int64(1), ig.Stats().CompositionsNew)

	w.mu.Lock()
	defer w.mu.Unlock()
	var totalCompositions int
	for _, b := range w.batches {
		totalCompositions += len(b.Compositions)
	}
	assert.Equal(t, 1, totalCompositions)
}

func TestIngestTextAccumulatesRatingObservationsPerOccurrence(t *testing.T) {
	ig, w := newTestIngester(t)
	ctx := context.Background()
	contentID := identity.New(identity.PrefixAtom, []byte("content-3"))

	_, err := ig.IngestText(ctx, contentID, "cat dog cat dog")
	require.NoError(t, err)
	ig.FlushWait()

	w.mu.Lock()
	defer w.mu.Unlock()
	var totalRatings, totalEvidence int
	for _, b := range w.batches {
		totalRatings += len(b.RelationRatings)
		totalEvidence += len(b.RelationEvidence)
	}
	// Three adjacent pairs observed ("cat dog", "dog cat", "cat dog") across
	// the four tokens: three windows of size 2, each an observation.
	assert.Equal(t, 3, totalRatings)
	// All three observations are the same unordered relation (cat, dog) in
	// the same content, so evidence (keyed on content+relation) collapses
	// to one row.
	assert.Equal(t, 1, totalEvidence)
}

func TestIngestTextSkipsWordsWithNoKnownAtoms(t *testing.T) {
	ig, w := newTestIngester(t)
	callStats, err := ig.IngestText(context.Background(), identity.New(identity.PrefixAtom, []byte("content-4")), "xyz")
	require.NoError(t, err)
	ig.FlushWait()

	assert.Equal(t, int64(0), callStats.CompositionsNew)
	assert.Equal(t, int64(0), callStats.AtomsNew)
	assert.Equal(t, int64(0), ig.Stats().CompositionsNew)
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.batches)
}

func TestIngestTextOfEmptyStringIsANoop(t *testing.T) {
	ig, w := newTestIngester(t)
	_, err := ig.IngestText(context.Background(), identity.New(identity.PrefixAtom, []byte("content-5")), "")
	require.NoError(t, err)
	ig.FlushWait()
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.batches)
}
