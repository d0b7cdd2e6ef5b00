// Package substratecache implements the per-session dedup cache described
// in spec section 4.5: identity sets for composition, physicality, and
// relation, plus a text-to-composition memo, pre-populated by streaming
// existing identities from the store.
package substratecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/hartonomous/substrate/internal/identity"
	"github.com/hartonomous/substrate/internal/substrate"
)

// IDStreamer exposes the store's identity-only streams used to
// pre-populate the cache without ever loading full rows.
type IDStreamer interface {
	StreamCompositionIDs(ctx context.Context, fn func(identity.ID) error) error
	StreamPhysicalityIDs(ctx context.Context, fn func(identity.ID) error) error
	StreamRelationIDs(ctx context.Context, fn func(identity.ID) error) error
}

// Cache holds the four identity sets and the text->composition memo
// behind a single RWMutex. A guarded map is used rather than a strictly
// single-writer structure (spec section 4.5's minimum requirement) so the
// text ingester can shard documents across goroutines without a redesign.
type Cache struct {
	mu sync.RWMutex

	atoms         map[identity.ID]struct{}
	compositions  map[identity.ID]struct{}
	physicalities map[identity.ID]struct{}
	relations     map[identity.ID]struct{}
	memo          map[string]substrate.CachedComposition
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		atoms:         make(map[identity.ID]struct{}),
		compositions:  make(map[identity.ID]struct{}),
		physicalities: make(map[identity.ID]struct{}),
		relations:     make(map[identity.ID]struct{}),
		memo:          make(map[string]substrate.CachedComposition),
	}
}

// PrePopulate streams existing identities from store into the three sets.
// It loads only identities, never full rows, per the spec's "must not load
// full rows" requirement.
func (c *Cache) PrePopulate(ctx context.Context, store IDStreamer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := store.StreamCompositionIDs(ctx, func(id identity.ID) error {
		c.compositions[id] = struct{}{}
		return nil
	}); err != nil {
		return fmt.Errorf("substratecache: prepopulate compositions: %w", err)
	}
	if err := store.StreamPhysicalityIDs(ctx, func(id identity.ID) error {
		c.physicalities[id] = struct{}{}
		return nil
	}); err != nil {
		return fmt.Errorf("substratecache: prepopulate physicalities: %w", err)
	}
	if err := store.StreamRelationIDs(ctx, func(id identity.ID) error {
		c.relations[id] = struct{}{}
		return nil
	}); err != nil {
		return fmt.Errorf("substratecache: prepopulate relations: %w", err)
	}
	return nil
}

// ExistsAtom reports whether id has already been touched this session.
func (c *Cache) ExistsAtom(id identity.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.atoms[id]
	return ok
}

// AddAtom marks id as touched this session, reporting whether it was newly
// added. Unlike the composition/physicality/relation sets, this set is never
// prepopulated from the store: atom rows are seeded by an external UCD
// loader, so every atom id this session resolves for the first time counts
// as new here, regardless of how long it has existed in the store.
func (c *Cache) AddAtom(id identity.ID) (isNew bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.atoms[id]; ok {
		return false
	}
	c.atoms[id] = struct{}{}
	return true
}

// ExistsComposition reports whether id is already known (in store or this
// session).
func (c *Cache) ExistsComposition(id identity.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.compositions[id]
	return ok
}

// AddComposition marks id as known, reporting whether it was newly added.
func (c *Cache) AddComposition(id identity.ID) (isNew bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.compositions[id]; ok {
		return false
	}
	c.compositions[id] = struct{}{}
	return true
}

// ExistsPhysicality reports whether id is already known.
func (c *Cache) ExistsPhysicality(id identity.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.physicalities[id]
	return ok
}

// AddPhysicality marks id as known, reporting whether it was newly added.
func (c *Cache) AddPhysicality(id identity.ID) (isNew bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.physicalities[id]; ok {
		return false
	}
	c.physicalities[id] = struct{}{}
	return true
}

// ExistsRelation reports whether id is already known.
func (c *Cache) ExistsRelation(id identity.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.relations[id]
	return ok
}

// AddRelation marks id as known, reporting whether it was newly added.
func (c *Cache) AddRelation(id identity.ID) (isNew bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.relations[id]; ok {
		return false
	}
	c.relations[id] = struct{}{}
	return true
}

// GetComposition returns the memoized compute result for text, if any.
func (c *Cache) GetComposition(text string) (substrate.CachedComposition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cc, ok := c.memo[text]
	return cc, ok
}

// CacheComposition memoizes text -> cc for the remainder of the session.
func (c *Cache) CacheComposition(text string, cc substrate.CachedComposition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo[text] = cc
}
