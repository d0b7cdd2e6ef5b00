// Package substrate is the library-facing entry point for the ingestion
// pipeline: it wires config, the relational store, the dedup caches, the
// async flusher, and the two ingesters (text, model) into the single
// Pipeline an embedding caller constructs once and drives via IngestText,
// IngestFile, IngestModel, and FlushWait.
package substrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hartonomous/substrate/internal/atomlookup"
	"github.com/hartonomous/substrate/internal/config"
	"github.com/hartonomous/substrate/internal/flusher"
	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/modelingest"
	"github.com/hartonomous/substrate/internal/objectstore"
	"github.com/hartonomous/substrate/internal/observability"
	"github.com/hartonomous/substrate/internal/store"
	"github.com/hartonomous/substrate/internal/substratecache"
	"github.com/hartonomous/substrate/internal/textingest"
	"github.com/hartonomous/substrate/internal/version"
)

// IngestionStats mirrors the counters textingest.Snapshot tracks, re-exported
// here so callers never need to import an internal package directly.
type IngestionStats = textingest.Snapshot

// ModelIngestionStats mirrors modelingest.Stats.
type ModelIngestionStats = modelingest.Stats

// Pipeline is the constructed, running ingestion pipeline: one Postgres
// store, one flusher worker pool draining into it, and the text and model
// ingesters sharing its dedup caches.
type Pipeline struct {
	store    *store.Store
	flusher  *flusher.Flusher
	objects  objectstore.ObjectStore
	text     *textingest.Ingester
	model    *modelingest.Ingester
	otelStop func(context.Context) error
}

// Open builds a Pipeline from cfg: initializes logging and (if configured)
// OpenTelemetry export, connects to Postgres, ensures the schema exists,
// pre-populates the dedup cache and atom lookup cache, constructs the
// object store backend cfg names, and starts the flusher worker pool. The
// returned Pipeline owns all of these resources; call Close to release them.
func Open(ctx context.Context, cfg config.Config) (*Pipeline, error) {
	observability.InitLogger(cfg.Logging.Path, cfg.Logging.Level)

	var otelStop func(context.Context) error
	if cfg.OTel.Enabled {
		obs := cfg.OTel
		if obs.ServiceVersion == "" {
			obs.ServiceVersion = version.Version
		}
		stop, err := observability.InitOTel(ctx, obs)
		if err != nil {
			return nil, fmt.Errorf("substrate: init otel: %w", err)
		}
		otelStop = stop
	}

	st, err := store.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		if otelStop != nil {
			_ = otelStop(ctx)
		}
		return nil, fmt.Errorf("substrate: open store: %w", err)
	}
	fail := func(stage string, err error) (*Pipeline, error) {
		st.Close()
		if otelStop != nil {
			_ = otelStop(ctx)
		}
		return nil, fmt.Errorf("substrate: %s: %w", stage, err)
	}

	if err := st.EnsureSchema(ctx); err != nil {
		return fail("ensure schema", err)
	}

	cache := substratecache.New()
	if err := cache.PrePopulate(ctx, st); err != nil {
		return fail("prepopulate cache", err)
	}

	atoms := atomlookup.New(st)
	if err := atoms.PreloadAll(ctx); err != nil {
		return fail("preload atoms", err)
	}

	objects, err := openObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return fail("open object store", err)
	}

	fl := flusher.New(st, store.IsDeadlock, flusher.Options{
		Workers:         cfg.Flusher.Workers,
		QueueCapacity:   cfg.Flusher.QueueCapacity,
		DeadlockRetries: cfg.Flusher.DeadlockRetries,
		Logger:          *observability.LoggerWithTrace(ctx),
	})

	text := textingest.New(atoms, cache, fl, textingest.Options{
		BatchThreshold: cfg.Ingester.BatchThreshold,
		BaseRating:     cfg.Text.BaseRating,
	})
	model := modelingest.New(atoms, cache, fl, modelingest.Options{
		SimilarityThreshold: cfg.Model.SimilarityThreshold,
		MaxNeighbors:        cfg.Model.MaxNeighbors,
		BaseRating:          cfg.Model.BaseRating,
	})

	return &Pipeline{store: st, flusher: fl, objects: objects, text: text, model: model, otelStop: otelStop}, nil
}

func openObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (objectstore.ObjectStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return objectstore.NewMemoryStore(), nil
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("substrate: unknown object store backend %q", cfg.Backend)
	}
}

// IngestText tokenizes and ingests text under contentID, per spec.md §6's
// ingest_text(content_id, text) → IngestionStats.
func (p *Pipeline) IngestText(ctx context.Context, contentID identity.ID, text string) (IngestionStats, error) {
	return p.text.IngestText(ctx, contentID, text)
}

// IngestFile reads path and ingests it as one document, per
// ingest_file(path) → IngestionStats.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (IngestionStats, error) {
	return p.text.IngestFile(ctx, path)
}

// IngestModel loads the vocab/embedding package at packageDir from the
// Pipeline's configured object store and ingests it at layerIndex, per
// ingest_model(package_dir).
func (p *Pipeline) IngestModel(ctx context.Context, packageDir string, layerIndex int) (ModelIngestionStats, error) {
	return p.model.IngestModel(ctx, p.objects, packageDir, layerIndex)
}

// Stats returns a snapshot of the text ingester's running counters.
func (p *Pipeline) Stats() IngestionStats {
	return p.text.Stats()
}

// FlushWait blocks until every batch enqueued so far has been committed or
// dropped, per flush_wait(): it does not distinguish the two outcomes, since
// operators consume drop visibility through logs and Dropped instead.
func (p *Pipeline) FlushWait() {
	p.text.FlushWait()
}

// Dropped returns the number of batches the flusher has dropped after
// exhausting deadlock retries or hitting a non-deadlock write error.
func (p *Pipeline) Dropped() int64 {
	return p.flusher.Dropped()
}

// Close waits for in-flight batches to drain, shuts the flusher down, and
// closes the underlying store connection pool.
func (p *Pipeline) Close() {
	p.FlushWait()
	p.flusher.Shutdown()
	p.store.Close()
	if p.otelStop != nil {
		_ = p.otelStop(context.Background())
	}
	log.Info().Msg("substrate: pipeline closed")
}
