// Package atomlookup caches the codepoint -> atom-identity mapping the
// substrate service needs on every composition computation, backed by a
// streaming read from the relational store on miss.
package atomlookup

import (
	"context"
	"fmt"
	"sync"

	"github.com/hartonomous/substrate/internal/geometry"
	"github.com/hartonomous/substrate/internal/identity"
)

// Info is everything the substrate service needs about one atom.
type Info struct {
	AtomID   identity.ID
	PhysID   identity.ID
	Position geometry.Point
	Hilbert  geometry.Index
}

// Reader is the narrow slice of the store the cache needs: a full-table
// stream for preload, and a batched lookup for cache misses. Satisfied by
// internal/store.Store.
type Reader interface {
	StreamAtoms(ctx context.Context, fn func(cp rune, info Info) error) error
	LookupMissing(ctx context.Context, codepoints []rune) (map[rune]Info, error)
}

// Cache is a read-heavy, concurrency-safe codepoint -> Info map. Reads take
// an RLock; only preload and miss-fill take the write lock.
type Cache struct {
	reader Reader

	mu   sync.RWMutex
	byCP map[rune]Info

	preloadOnce sync.Once
	preloadErr  error
}

// New constructs an empty Cache backed by reader.
func New(reader Reader) *Cache {
	return &Cache{
		reader: reader,
		byCP:   make(map[rune]Info),
	}
}

// PreloadAll streams the entire atom table once and populates the cache.
// Safe to call concurrently: only the first call performs the stream: all
// callers, including later ones, observe its result.
func (c *Cache) PreloadAll(ctx context.Context) error {
	c.preloadOnce.Do(func() {
		c.preloadErr = c.reader.StreamAtoms(ctx, func(cp rune, info Info) error {
			c.mu.Lock()
			c.byCP[cp] = info
			c.mu.Unlock()
			return nil
		})
	})
	return c.preloadErr
}

// Lookup returns the Info for a single codepoint, querying the store on
// miss. A codepoint absent from the store is reported via ok=false; callers
// drop it silently per the atom-lookup failure-mode contract.
func (c *Cache) Lookup(ctx context.Context, cp rune) (Info, bool, error) {
	c.mu.RLock()
	info, ok := c.byCP[cp]
	c.mu.RUnlock()
	if ok {
		return info, true, nil
	}

	found, err := c.reader.LookupMissing(ctx, []rune{cp})
	if err != nil {
		return Info{}, false, fmt.Errorf("atomlookup: lookup miss for %q: %w", cp, err)
	}
	info, ok = found[cp]
	if !ok {
		return Info{}, false, nil
	}
	c.mu.Lock()
	c.byCP[cp] = info
	c.mu.Unlock()
	return info, true, nil
}

// LookupBatch returns a dense map covering every codepoint in cps that the
// cache (after at most one store round-trip for the miss subset) has an
// entry for. Codepoints with no known atom are simply absent from the
// result.
func (c *Cache) LookupBatch(ctx context.Context, cps []rune) (map[rune]Info, error) {
	result := make(map[rune]Info, len(cps))
	var missing []rune

	c.mu.RLock()
	for _, cp := range cps {
		if _, seen := result[cp]; seen {
			continue
		}
		if info, ok := c.byCP[cp]; ok {
			result[cp] = info
		} else {
			missing = append(missing, cp)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	found, err := c.reader.LookupMissing(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("atomlookup: lookup missing batch: %w", err)
	}

	c.mu.Lock()
	for cp, info := range found {
		c.byCP[cp] = info
		result[cp] = info
	}
	c.mu.Unlock()

	return result, nil
}
