// Package cache implements the device's content-addressed object caches:
// a concurrent "find-or-insert" store keyed by a precomputed 64-bit
// content hash, used for bind-group layouts, pipeline layouts, shader
// modules, samplers, render/compute pipelines and attachment states.
//
// The cache holds weak references only; strong ownership lives with the
// caller. An entry removes itself once its last strong reference is
// collected. Go has no hand-rollable Arc/Weak pair the way native-code
// backends typically reach for, so this package is built on the standard
// library's weak.Pointer (content identity) paired with
// runtime.AddCleanup (self-removal on collection) — the GC-native
// substitute for an explicit-destructor discipline.
package cache

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sys/cpu"
)

// EntryPtr is the constraint every cached type's pointer must satisfy:
// a precomputed content hash and a content-equality check against another
// instance of the same pointer type. Hashing happens once, at
// construction, before the value is ever handed to a Cache.
type EntryPtr[T any] interface {
	*T
	ContentHash() uint64
	ContentEqual(other *T) bool
}

const shardCount = 32

// Cache is a sharded, concurrent content-addressed cache of *T.
// T is the entry's value type; PT (=*T) must implement EntryPtr[T].
type Cache[T any, PT EntryPtr[T]] struct {
	shards [shardCount]shard[T]
}

type shard[T any] struct {
	mu      sync.Mutex
	entries map[uint64][]weak.Pointer[T]

	// _ pads the shard out to its own cache line. Shards sit back-to-back
	// in Cache.shards; without padding, two goroutines hammering adjacent
	// shards' mutexes would false-share the same cache line and
	// contend on the CPU's coherence traffic even though they never
	// touch the same logical data.
	_ cpu.CacheLinePad
}

// New creates an empty cache.
func New[T any, PT EntryPtr[T]]() *Cache[T, PT] {
	c := &Cache[T, PT]{}
	for i := range c.shards {
		c.shards[i].entries = make(map[uint64][]weak.Pointer[T])
	}
	return c
}

func (c *Cache[T, PT]) shardFor(hash uint64) *shard[T] {
	return &c.shards[hash%shardCount]
}

// Find returns a live entry whose content matches blueprint, if one is
// currently registered and has not been fully collected. O(1) expected.
func (c *Cache[T, PT]) Find(blueprint PT) (PT, bool) {
	hash := blueprint.ContentHash()
	s := c.shardFor(hash)
	s.mu.Lock()
	defer s.mu.Unlock()
	return findLocked[T, PT](s, hash, blueprint)
}

func findLocked[T any, PT EntryPtr[T]](s *shard[T], hash uint64, blueprint PT) (PT, bool) {
	list := s.entries[hash]
	for _, wp := range list {
		if strong := wp.Value(); strong != nil {
			if PT(strong).ContentEqual((*T)(blueprint)) {
				return PT(strong), true
			}
		}
	}
	return nil, false
}

// GetOrCreate finds first; on a miss, calls factory OUTSIDE any lock;
// then atomically tries to insert.
// If another goroutine's factory already won the race for this content,
// the caller's freshly built value is discarded (not destroyed — the
// cache has no destructor contract for T; the caller owns any backend
// resource release, since dropping the one extra strong reference here
// is sufficient to let it be collected if nothing else retains it) and
// the winner's reference is returned instead. factory is never called
// while holding a shard lock, so two goroutines building distinct content
// never contend.
func (c *Cache[T, PT]) GetOrCreate(blueprint PT, factory func() (PT, error)) (PT, error) {
	if found, ok := c.Find(blueprint); ok {
		return found, nil
	}

	created, err := factory()
	if err != nil {
		var zero PT
		return zero, err
	}

	hash := created.ContentHash()
	s := c.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if winner, ok := findLocked[T, PT](s, hash, created); ok {
		return winner, nil
	}

	s.entries[hash] = append(s.entries[hash], weak.Make((*T)(created)))
	registerSelfRemoval(s, hash, (*T)(created))
	return created, nil
}

// registerSelfRemoval arranges for the shard's weak-pointer slot to be
// pruned once ptr is collected, so entries self-remove once their last
// strong reference drops. The cleanup fires on a separate goroutine
// after ptr becomes unreachable; it never blocks the collector and never
// runs while ptr is still reachable from the caller.
func registerSelfRemoval[T any](s *shard[T], hash uint64, ptr *T) {
	wp := weak.Make(ptr)
	runtime.AddCleanup(ptr, func(args cleanupArgs[T]) {
		args.shard.mu.Lock()
		defer args.shard.mu.Unlock()
		list := args.shard.entries[args.hash]
		for i, w := range list {
			if w == args.wp {
				args.shard.entries[args.hash] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(args.shard.entries[args.hash]) == 0 {
			delete(args.shard.entries, args.hash)
		}
	}, cleanupArgs[T]{shard: s, hash: hash, wp: wp})
}

type cleanupArgs[T any] struct {
	shard *shard[T]
	hash  uint64
	wp    weak.Pointer[T]
}

// Len returns the number of live weak-pointer slots across all shards,
// including ones whose target has already been collected but not yet
// pruned by its cleanup. Intended for tests and diagnostics only.
func (c *Cache[T, PT]) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.Lock()
		for _, list := range c.shards[i].entries {
			n += len(list)
		}
		c.shards[i].mu.Unlock()
	}
	return n
}
