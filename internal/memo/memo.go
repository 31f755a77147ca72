// Package memo is the value cache shared by executions: content-keyed,
// bounded by LRU eviction, with at most one computation in flight per key.
package memo

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/singleflight"
)

// Key is the content hash a value is stored under.
type Key = types.Digest

// Entry is an immutable cached value. A newer generation of the same key
// replaces the pointer, never the fields.
type Entry struct {
	Key        Key
	Value      cty.Value
	Generation uint64
}

// Stats are cumulative counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Computations int64
	Evictions    int64
	Entries      int
}

// ComputeFunc produces the value for a key on a miss.
type ComputeFunc func(ctx context.Context) (cty.Value, error)

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[Key]*list.Element
	lru      *list.List
	gens     map[Key]uint64
	flight   singleflight.Group

	hits         int64
	misses       int64
	computations int64
	evictions    int64
}

// New returns a cache holding at most capacity entries. A capacity of zero
// or less means unbounded.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[Key]*list.Element),
		lru:      list.New(),
		gens:     make(map[Key]uint64),
	}
}

// Get returns the current entry for key.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.mu.RLock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		return nil, false
	}
	entry := el.Value.(*Entry)
	c.mu.RUnlock()

	c.mu.Lock()
	// The element may have been evicted between the two locks.
	if cur, ok := c.entries[key]; ok && cur == el {
		c.lru.MoveToFront(el)
	}
	c.mu.Unlock()
	return entry, true
}

// GetOrCompute returns the cached value for key, or computes it with fn.
// Concurrent callers for the same key share one computation. The boolean
// reports whether the value came from the cache or from another caller's
// computation. Errors are returned to every waiter and never stored.
//
// fn runs detached from the cancellation of the caller that started it:
// a caller whose ctx ends stops waiting, while the others still receive
// the value.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (cty.Value, bool, error) {
	if entry, ok := c.Get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return entry.Value, true, nil
	}
	atomic.AddInt64(&c.misses, 1)
	if err := ctx.Err(); err != nil {
		return cty.NilVal, false, err
	}

	computed := false
	ch := c.flight.DoChan(key.String(), func() (any, error) {
		// A computation that finished just before this one started has
		// already published its entry.
		if entry, ok := c.Get(key); ok {
			return entry.Value, nil
		}
		gen := c.generation(key)
		computed = true
		atomic.AddInt64(&c.computations, 1)
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.publish(key, v, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return cty.NilVal, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return cty.NilVal, false, res.Err
		}
		return res.Val.(cty.Value), !computed, nil
	}
}

func (c *Cache) generation(key Key) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// publish stores v unless key was invalidated while v was being computed.
func (c *Cache) publish(key Key, v cty.Value, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	entry := &Entry{Key: key, Value: v, Generation: gen}
	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(entry)
	for c.capacity > 0 && c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*Entry).Key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// Invalidate drops the entry for key and bumps its generation, so that a
// computation already in flight does not publish a stale value.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	if el, ok := c.entries[key]; ok {
		c.lru.Remove(el)
		delete(c.entries, key)
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.gens[key]++
	}
	c.entries = make(map[Key]*list.Element)
	c.lru.Init()
}

// Len is the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         atomic.LoadInt64(&c.hits),
		Misses:       atomic.LoadInt64(&c.misses),
		Computations: atomic.LoadInt64(&c.computations),
		Evictions:    atomic.LoadInt64(&c.evictions),
		Entries:      c.Len(),
	}
}
