package artifact

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/graphcraft/internal/types"
	"golang.org/x/sync/singleflight"
)

// CompileFunc produces the artifact for a key on a miss.
type CompileFunc func(ctx context.Context) (*Artifact, error)

// CacheStats are cumulative counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Compiles  int64
	StoreHits int64
}

// Cache keeps artifacts in memory and, when a Store is configured, on disk.
// It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	mem    map[types.Digest]*Artifact
	store  Store
	flight singleflight.Group
	logger *slog.Logger

	hits, misses, compiles, storeHits atomic.Int64
}

// NewCache returns a cache. store may be nil.
func NewCache(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{mem: make(map[types.Digest]*Artifact), store: store, logger: logger}
}

// Get looks the key up in memory, then in the store.
func (c *Cache) Get(ctx context.Context, key types.Digest) (*Artifact, bool) {
	c.mu.RLock()
	a, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return a, true
	}
	if c.store == nil {
		return nil, false
	}

	a, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("Artifact store lookup failed, treating as miss.", "key", key.Short(), "error", err)
		}
		return nil, false
	}
	c.storeHits.Add(1)
	c.remember(a)
	return a, true
}

func (c *Cache) remember(a *Artifact) {
	c.mu.Lock()
	c.mem[a.Key] = a
	c.mu.Unlock()
}

// GetOrCompile returns the cached artifact for key or runs fn once, however
// many callers ask for the same key concurrently. Failures are not cached.
// The boolean reports a cache hit.
func (c *Cache) GetOrCompile(ctx context.Context, key types.Digest, fn CompileFunc) (*Artifact, bool, error) {
	if a, ok := c.Get(ctx, key); ok {
		c.hits.Add(1)
		return a, true, nil
	}
	c.misses.Add(1)

	compiled := false
	ch := c.flight.DoChan(key.String(), func() (any, error) {
		if a, ok := c.Get(ctx, key); ok {
			return a, nil
		}
		compiled = true
		c.compiles.Add(1)
		a, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		a.Key = key
		c.remember(a)
		if c.store != nil {
			if err := c.store.Put(context.WithoutCancel(ctx), a); err != nil {
				c.logger.Warn("Could not persist artifact.", "key", key.Short(), "error", err)
			}
		}
		return a, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Artifact), !compiled, nil
	}
}

// Len is the number of artifacts held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Stats returns the counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Compiles:  c.compiles.Load(),
		StoreHits: c.storeHits.Load(),
	}
}
