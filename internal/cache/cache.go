// Package cache provides the per-file compilation cache: bounded entry
// count, least-recently-used eviction, whole-entry invalidation, and
// independently populated slots filled through the external compiler on
// first access.
//
// Ordering contract: once Invalidate returns, any access that begins
// afterwards observes recompiled output. Accesses already in flight may
// still return output compiled from the old content, but their result is
// never committed back into the cache across an invalidation. Concurrent
// first-time compiles of one slot are collapsed into a single compiler call.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/viaduct-dev/viaduct/internal/types"
)

// Cache is the compilation cache, keyed by absolute file path.
type Cache struct {
	mutex      sync.RWMutex
	entries    map[string]*entry
	maxEntries int

	// LRU doubly-linked list with dummy head and tail.
	head *entry
	tail *entry

	// generations invalidates in-flight compiles: a fill started under an
	// older generation is returned to its caller but never committed.
	generations map[string]uint64
	// flightKeys tracks the singleflight keys active per path so
	// Invalidate can forget all of them.
	flightKeys map[string]map[string]struct{}
	flights    singleflight.Group

	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
}

// entry is one cached file with its LRU links.
type entry struct {
	key      string
	artifact *Artifact
	prev     *entry
	next     *entry
}

// DefaultMaxEntries bounds the cache when no limit is configured.
const DefaultMaxEntries = 500

// New creates a compilation cache holding at most maxEntries files.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		entries:     make(map[string]*entry),
		maxEntries:  maxEntries,
		generations: make(map[string]uint64),
		flightKeys:  make(map[string]map[string]struct{}),
	}
	c.head = &entry{}
	c.tail = &entry{}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Peek returns the current snapshot for a path without filling anything and
// without touching recency.
func (c *Cache) Peek(path string) (*Artifact, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	return e.artifact, true
}

// Descriptor returns the parsed descriptor for a path, invoking parse on
// first access. A parse failure caches nothing and is returned to every
// caller waiting on the same flight.
func (c *Cache) Descriptor(ctx context.Context, path string, parse func(context.Context) (*types.Descriptor, error)) (*types.Descriptor, error) {
	if a := c.lookup(path); a != nil && a.Descriptor != nil {
		return a.Descriptor, nil
	}

	v, err := c.fly(ctx, path, "descriptor", func(ctx context.Context, gen uint64) (interface{}, error) {
		desc, err := parse(ctx)
		if err != nil {
			return nil, err
		}
		c.commit(path, gen, func(a *Artifact) *Artifact {
			next := *a
			next.Descriptor = desc
			return &next
		})
		return desc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Descriptor), nil
}

// MainModule returns the composed main-module slot, filling it on first
// access.
func (c *Cache) MainModule(ctx context.Context, path string, compile func(context.Context) (*Slot, error)) (*Slot, error) {
	if a := c.lookup(path); a != nil && a.MainModule != nil {
		return a.MainModule, nil
	}
	return c.fillSlot(ctx, path, "main", compile, func(a *Artifact, s *Slot) *Artifact {
		return a.withMain(s)
	})
}

// Template returns the compiled template slot, filling it on first access.
func (c *Cache) Template(ctx context.Context, path string, compile func(context.Context) (*Slot, error)) (*Slot, error) {
	if a := c.lookup(path); a != nil && a.Template != nil {
		return a.Template, nil
	}
	return c.fillSlot(ctx, path, "template", compile, func(a *Artifact, s *Slot) *Artifact {
		return a.withTemplate(s)
	})
}

// Style returns the compiled style slot at index, filling it on first
// access.
func (c *Cache) Style(ctx context.Context, path string, index int, compile func(context.Context) (*Slot, error)) (*Slot, error) {
	if a := c.lookup(path); a.Style(index) != nil {
		return a.Style(index), nil
	}
	return c.fillSlot(ctx, path, fmt.Sprintf("style.%d", index), compile, func(a *Artifact, s *Slot) *Artifact {
		return a.withStyle(index, s)
	})
}

// Invalidate drops the whole entry for a path and returns the prior
// snapshot, which the caller keeps exactly long enough to diff against the
// freshly parsed content. In-flight compiles for the path are detached: new
// accesses start fresh flights and the old results are never committed.
func (c *Cache) Invalidate(path string) *Artifact {
	c.mutex.Lock()
	c.generations[path]++
	for key := range c.flightKeys[path] {
		c.flights.Forget(key)
	}
	delete(c.flightKeys, path)

	e, ok := c.entries[path]
	var prior *Artifact
	if ok {
		prior = e.artifact
		c.removeFromList(e)
		delete(c.entries, path)
		atomic.AddInt64(&c.invalidations, 1)
	}
	c.mutex.Unlock()
	return prior
}

// lookup reads a snapshot and marks the entry recently used.
func (c *Cache) lookup(path string) *Artifact {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[path]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil
	}
	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.artifact
}

// fillSlot collapses concurrent first-time compiles of one slot and commits
// the result as a new snapshot.
func (c *Cache) fillSlot(ctx context.Context, path, slot string, compile func(context.Context) (*Slot, error), set func(*Artifact, *Slot) *Artifact) (*Slot, error) {
	v, err := c.fly(ctx, path, slot, func(ctx context.Context, gen uint64) (interface{}, error) {
		s, err := compile(ctx)
		if err != nil {
			return nil, err
		}
		c.commit(path, gen, func(a *Artifact) *Artifact {
			return set(a, s)
		})
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Slot), nil
}

// fly runs fn in a singleflight keyed by path and slot, capturing the
// path's generation before the flight starts.
func (c *Cache) fly(ctx context.Context, path, slot string, fn func(context.Context, uint64) (interface{}, error)) (interface{}, error) {
	key := path + "\x00" + slot

	c.mutex.Lock()
	gen := c.generations[path]
	keys, ok := c.flightKeys[path]
	if !ok {
		keys = make(map[string]struct{})
		c.flightKeys[path] = keys
	}
	keys[key] = struct{}{}
	c.mutex.Unlock()

	v, err, _ := c.flights.Do(key, func() (interface{}, error) {
		return fn(ctx, gen)
	})

	c.mutex.Lock()
	if keys, ok := c.flightKeys[path]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.flightKeys, path)
		}
	}
	c.mutex.Unlock()
	return v, err
}

// commit installs an updated snapshot for path unless the path was
// invalidated after the flight captured gen, in which case the result is
// discarded and only the in-flight caller sees it.
func (c *Cache) commit(path string, gen uint64, update func(*Artifact) *Artifact) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.generations[path] != gen {
		return
	}

	e, ok := c.entries[path]
	if !ok {
		c.evictIfNeeded()
		e = &entry{key: path, artifact: &Artifact{Path: path}}
		c.entries[path] = e
		c.addToFront(e)
	}
	e.artifact = update(e.artifact)
	c.moveToFront(e)
}

// evictIfNeeded drops least-recently-used entries until one slot is free.
// Called with the mutex held.
func (c *Cache) evictIfNeeded() {
	for len(c.entries) >= c.maxEntries && c.tail.prev != c.head {
		lru := c.tail.prev
		c.removeFromList(lru)
		delete(c.entries, lru.key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// Stats is a point-in-time view of cache behavior.
type Stats struct {
	Entries       int   `json:"entries"`
	MaxEntries    int   `json:"max_entries"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Evictions     int64 `json:"evictions"`
	Invalidations int64 `json:"invalidations"`
}

// GetStats returns current counters.
func (c *Cache) GetStats() Stats {
	c.mutex.RLock()
	count := len(c.entries)
	c.mutex.RUnlock()
	return Stats{
		Entries:       count,
		MaxEntries:    c.maxEntries,
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Evictions:     atomic.LoadInt64(&c.evictions),
		Invalidations: atomic.LoadInt64(&c.invalidations),
	}
}

// LRU doubly-linked list operations.
func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *Cache) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}
