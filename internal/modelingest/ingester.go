package modelingest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/batchflow"
	"github.com/hartonomous/substrate/internal/flusher"
	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/objectstore"
	"github.com/hartonomous/substrate/internal/substrate"
	"github.com/hartonomous/substrate/internal/substratecache"
)

const (
	defaultSimilarityThreshold = 0.40
	defaultMaxNeighbors        = 64
	defaultBaseRating          = 1200.0
)

// LayerShape is a monotone non-increasing shaping function over layer
// depth applied to the base rating; the default treats every layer
// identically.
type LayerShape func(layerIndex int) float64

func identityShape(int) float64 { return 1.0 }

// Options configures an Ingester. Zero values fall back to the defaults
// documented in spec.md §6.
type Options struct {
	SimilarityThreshold float64
	MaxNeighbors        int
	BaseRating          float64
	Shape               LayerShape
}

// Ingester loads a model package (vocabulary plus embedding matrix) and
// emits a composition per token and a relation per cosine-similar token
// pair, routed through the same flusher text ingestion uses.
type Ingester struct {
	atoms     *atomlookup.Cache
	cache     *substratecache.Cache
	flush     *flusher.Flusher
	threshold float64
	maxK      int
	baseRate  float64
	shape     LayerShape
}

// New constructs a model Ingester.
func New(atoms *atomlookup.Cache, cache *substratecache.Cache, fl *flusher.Flusher, opts Options) *Ingester {
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}
	maxK := opts.MaxNeighbors
	if maxK <= 0 {
		maxK = defaultMaxNeighbors
	}
	baseRate := opts.BaseRating
	if baseRate <= 0 {
		baseRate = defaultBaseRating
	}
	shape := opts.Shape
	if shape == nil {
		shape = identityShape
	}
	return &Ingester{atoms: atoms, cache: cache, flush: fl, threshold: threshold, maxK: maxK, baseRate: baseRate, shape: shape}
}

// Stats mirrors textingest.Snapshot's field set for the counters this
// ingester tracks; kept as a distinct type since model ingestion has no
// original-bytes notion (there is no source text, only a matrix).
type Stats struct {
	CompositionsNew int64
	RelationsNew    int64
}

// IngestModel loads packageDir's vocabulary and embedding matrix from
// store, L2-normalizes every row, and for each token emits up to
// MaxNeighbors relations to the tokens whose cosine similarity meets
// SimilarityThreshold, at layerIndex's shaped base rating. layerIndex lets
// a caller importing a multi-layer model call IngestModel once per layer,
// each with its own shaping weight; this module itself treats one
// embeddings.bin as one layer.
func (ig *Ingester) IngestModel(ctx context.Context, store objectstore.ObjectStore, packageDir string, layerIndex int) (Stats, error) {
	vocab, err := loadVocab(ctx, store, packageDir)
	if err != nil {
		return Stats{}, err
	}
	rows, cols, data, err := loadMatrix(ctx, store, packageDir)
	if err != nil {
		return Stats{}, err
	}
	if rows != len(vocab) {
		return Stats{}, fmt.Errorf("modelingest: matrix has %d rows but vocab has %d tokens", rows, len(vocab))
	}
	if rows == 0 {
		return Stats{}, nil
	}

	runeSet := make(map[rune]struct{})
	for _, tok := range vocab {
		for _, r := range tok {
			runeSet[r] = struct{}{}
		}
	}
	runes := make([]rune, 0, len(runeSet))
	for r := range runeSet {
		runes = append(runes, r)
	}
	atoms, err := ig.atoms.LookupBatch(ctx, runes)
	if err != nil {
		return Stats{}, fmt.Errorf("modelingest: lookup atoms: %w", err)
	}

	var stats Stats
	builder := batchflow.NewBuilder()
	cached := make([]substrate.CachedComposition, rows)

	for i, tok := range vocab {
		computed := substrate.ComputeComposition(tok, atoms)
		if !computed.Valid {
			continue
		}
		if ig.cache.AddComposition(computed.Composition.CompID) {
			if ig.cache.AddPhysicality(computed.Physicality.PhysID) {
				builder.AddPhysicality(computed.Physicality)
			}
			builder.AddComposition(computed.Composition)
			builder.AddCompositionSequences(computed.Sequences...)
			stats.CompositionsNew++
		}
		cached[i] = computed.Cached
	}

	sim := cosineSimilarity(rows, cols, data)
	baseRating := ig.baseRate * ig.shape(layerIndex)
	modelContentID := identity.Of([]byte("modelingest:"), []byte(packageDir))
	seenEvidence := make(map[identity.ID]struct{})

	for i := 0; i < rows; i++ {
		if !cached[i].Valid {
			continue
		}
		neighbors := topNeighbors(sim, i, ig.threshold, ig.maxK)
		for _, j := range neighbors {
			if !cached[j].Valid {
				continue
			}
			rel := substrate.ComputeRelation(cached[i], cached[j], modelContentID, baseRating)
			if !rel.Valid {
				continue
			}
			if ig.cache.AddRelation(rel.Relation.RelID) {
				if ig.cache.AddPhysicality(rel.Physicality.PhysID) {
					builder.AddPhysicality(rel.Physicality)
				}
				builder.AddRelation(rel.Relation)
				builder.AddRelationSequences(rel.Sequences...)
				stats.RelationsNew++
			}
			// Similarity is symmetric, so each related pair is reached from
			// both of its tokens; stage its rating and evidence only once.
			if _, seen := seenEvidence[rel.Evidence.EvidenceID]; !seen {
				seenEvidence[rel.Evidence.EvidenceID] = struct{}{}
				builder.AddRelationRating(rel.Rating)
				builder.AddRelationEvidence(rel.Evidence)
			}
		}
	}

	if builder.Len() > 0 && !ig.flush.Enqueue(builder.Drain()) {
		return stats, fmt.Errorf("modelingest: flusher is shutting down, batch dropped")
	}
	return stats, nil
}

// cosineSimilarity L2-normalizes every row of the rows x cols matrix
// backing data, then returns the rows x rows matrix of pairwise dot
// products, which equal cosine similarities once every row is unit-norm.
func cosineSimilarity(rows, cols int, data []float64) *mat.Dense {
	m := mat.NewDense(rows, cols, data)
	normalized := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		var sumSq float64
		for _, v := range row {
			sumSq += v * v
		}
		n := math.Sqrt(sumSq)
		for j := 0; j < cols; j++ {
			if n == 0 {
				normalized.Set(i, j, 0)
				continue
			}
			normalized.Set(i, j, row[j]/n)
		}
	}

	var sim mat.Dense
	sim.Mul(normalized, normalized.T())
	return &sim
}

// topNeighbors returns up to maxK row indices (excluding self) whose
// similarity to row i meets threshold, ordered by descending similarity.
func topNeighbors(sim *mat.Dense, i int, threshold float64, maxK int) []int {
	rows, _ := sim.Dims()
	type scored struct {
		idx int
		sim float64
	}
	var candidates []scored
	for j := 0; j < rows; j++ {
		if j == i {
			continue
		}
		s := sim.At(i, j)
		if s >= threshold {
			candidates = append(candidates, scored{idx: j, sim: s})
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].sim > candidates[b].sim })
	if len(candidates) > maxK {
		candidates = candidates[:maxK]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.idx
	}
	return out
}
