// Package textingest turns UTF-8 text into SubstrateBatch records: it
// tokenizes into word-granularity compositions, resolves each word's
// constituent atoms through the lookup cache, computes composition and
// relation records through the stateless substrate functions, dedupes
// against the per-session cache, and hands finished batches to the
// flusher.
package textingest

import (
	"context"
	"fmt"
	"os"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/batchflow"
	"github.com/hartonomous/substrate/internal/flusher"
	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/substrate"
	"github.com/hartonomous/substrate/internal/substratecache"
)

// defaultWindow is the adjacent-pair relation window when Options.Window
// is unset: each composition relates only to the one immediately after it.
const defaultWindow = 2

// defaultBatchThreshold is the record count at which a pending batch is
// flushed mid-document rather than held until the document ends.
const defaultBatchThreshold = 100_000

// defaultBaseRating is the starting rating for relations observed in text,
// distinct from the lower base rating model-derived relations use.
const defaultBaseRating = 1500.0

// Options configures an Ingester. Zero values fall back to the defaults
// above.
type Options struct {
	Window         int
	BatchThreshold int
	BaseRating     float64
}

// Ingester is the text-ingestion entry point. Safe for concurrent use
// across documents: the atom cache and substrate cache are internally
// synchronized, and each IngestText call owns its own batchflow.Builder.
type Ingester struct {
	atoms    *atomlookup.Cache
	cache    *substratecache.Cache
	flush    *flusher.Flusher
	window   int
	batchMax int
	baseRate float64
	counters Counters
}

// New constructs an Ingester over the given caches and flusher.
func New(atoms *atomlookup.Cache, cache *substratecache.Cache, fl *flusher.Flusher, opts Options) *Ingester {
	window := opts.Window
	if window < 2 {
		window = defaultWindow
	}
	batchMax := opts.BatchThreshold
	if batchMax <= 0 {
		batchMax = defaultBatchThreshold
	}
	baseRate := opts.BaseRating
	if baseRate <= 0 {
		baseRate = defaultBaseRating
	}
	return &Ingester{
		atoms:    atoms,
		cache:    cache,
		flush:    fl,
		window:   window,
		batchMax: batchMax,
		baseRate: baseRate,
	}
}

// Stats returns a snapshot of the running counters.
func (ig *Ingester) Stats() Snapshot {
	return ig.counters.Snapshot()
}

// FlushWait blocks until every batch this Ingester has enqueued has been
// committed (or dropped) by the flusher.
func (ig *Ingester) FlushWait() {
	ig.flush.WaitAll()
}

// IngestText tokenizes text into compositions, derives relations over a
// sliding window of compositions, stages new records into the flusher, and
// updates the running counters. contentID identifies the caller-supplied
// unit text was drawn from, and is the evidence anchor for every relation
// observed here. The returned Snapshot reports only this call's
// contribution, per spec.md §6's ingest_text(content_id, text) →
// IngestionStats contract; Stats() holds the session-cumulative total.
func (ig *Ingester) IngestText(ctx context.Context, contentID identity.ID, text string) (Snapshot, error) {
	var call Snapshot
	call.OriginalBytes = int64(len(text))
	ig.counters.originalBytes.Add(call.OriginalBytes)

	words := tokenize(text)
	if len(words) == 0 {
		return call, nil
	}

	runeSet := make(map[rune]struct{})
	for _, w := range words {
		for _, r := range w {
			runeSet[r] = struct{}{}
		}
	}
	runes := make([]rune, 0, len(runeSet))
	for r := range runeSet {
		runes = append(runes, r)
	}
	atoms, err := ig.atoms.LookupBatch(ctx, runes)
	if err != nil {
		return call, fmt.Errorf("textingest: lookup atoms: %w", err)
	}
	for _, info := range atoms {
		if ig.cache.AddAtom(info.AtomID) {
			ig.counters.atomsNew.Add(1)
			call.AtomsNew++
		}
	}

	builder := batchflow.NewBuilder()
	cached := make([]substrate.CachedComposition, len(words))
	seenEvidence := make(map[identity.ID]struct{})

	flushIfLarge := func() error {
		if builder.Len() < ig.batchMax {
			return nil
		}
		return ig.drainAndEnqueue(builder, &call)
	}

	for i, w := range words {
		if cc, ok := ig.cache.GetComposition(w); ok {
			cached[i] = cc
			continue
		}
		computed := substrate.ComputeComposition(w, atoms)
		if !computed.Valid {
			continue
		}
		if ig.cache.AddComposition(computed.Composition.CompID) {
			if ig.cache.AddPhysicality(computed.Physicality.PhysID) {
				builder.AddPhysicality(computed.Physicality)
			}
			builder.AddComposition(computed.Composition)
			builder.AddCompositionSequences(computed.Sequences...)
			ig.counters.compositionsNew.Add(1)
			call.CompositionsNew++
		}
		ig.cache.CacheComposition(w, computed.Cached)
		cached[i] = computed.Cached

		if err := flushIfLarge(); err != nil {
			return call, err
		}
	}

	for i := range cached {
		for off := 1; off < ig.window && i+off < len(cached); off++ {
			rel := substrate.ComputeRelation(cached[i], cached[i+off], contentID, ig.baseRate)
			if !rel.Valid {
				continue
			}
			if ig.cache.AddRelation(rel.Relation.RelID) {
				if ig.cache.AddPhysicality(rel.Physicality.PhysID) {
					builder.AddPhysicality(rel.Physicality)
				}
				builder.AddRelation(rel.Relation)
				builder.AddRelationSequences(rel.Sequences...)
				ig.counters.relationsNew.Add(1)
				call.RelationsNew++
			}
			// Every occurrence contributes an observation to the rating,
			// regardless of whether the relation identity itself is new.
			builder.AddRelationRating(rel.Rating)

			if _, seen := seenEvidence[rel.Evidence.EvidenceID]; !seen {
				seenEvidence[rel.Evidence.EvidenceID] = struct{}{}
				builder.AddRelationEvidence(rel.Evidence)
			}

			if err := flushIfLarge(); err != nil {
				return call, err
			}
		}
	}

	if builder.Len() > 0 {
		if err := ig.drainAndEnqueue(builder, &call); err != nil {
			return call, err
		}
	}
	return call, nil
}

// IngestFile reads path in full and ingests it as one document. The
// content identity is derived from the file's own bytes (content-addressed,
// like every other identity this pipeline derives), so ingesting the same
// file twice produces the same content_id and therefore the same evidence
// rows.
func (ig *Ingester) IngestFile(ctx context.Context, path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("textingest: read %s: %w", path, err)
	}
	contentID := identity.Of(data)
	return ig.IngestText(ctx, contentID, string(data))
}

func (ig *Ingester) drainAndEnqueue(b *batchflow.Builder, call *Snapshot) error {
	batch := b.Drain()
	stored := estimateStoredBytes(batch)
	ig.counters.storedBytes.Add(stored)
	call.StoredBytes += stored
	if !ig.flush.Enqueue(batch) {
		ig.counters.batchesDropped.Add(1)
		call.BatchesDropped++
		return fmt.Errorf("textingest: flusher is shutting down, batch dropped")
	}
	return nil
}
