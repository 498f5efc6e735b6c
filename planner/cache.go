package planner

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey identifies a cacheable plan. It deliberately excludes variable
// values (spec.md §4.3: "the cache key deliberately excludes variable
// values; implementations must coerce arguments at execution time, not plan
// time") so that many requests differing only in variables share one Plan.
type CacheKey struct {
	SchemaDigest                string
	SelectionText                string
	ExecuteAccessChecksInModstrat bool
}

// Cache is a bounded LRU keyed on CacheKey that never evicts a Plan still
// referenced by an in-flight request, even past its normal LRU turn
// (spec.md §4.3). The underlying hashicorp/golang-lru store gives us
// size-bounded eviction; the refcounting here layers the "never evict a
// live plan" guarantee on top, since the library alone has no notion of a
// borrowed entry.
type Cache struct {
	mu      sync.Mutex
	store   *lru.Cache[CacheKey, *entry]
	pending map[CacheKey][]*entry // entries evicted by the LRU while still referenced
}

type entry struct {
	plan    *Plan
	refs    int
	evicted bool
}

// NewCache returns a Cache holding at most size plans.
func NewCache(size int) (*Cache, error) {
	c := &Cache{pending: map[CacheKey][]*entry{}}
	store, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

func (c *Cache) onEvict(key CacheKey, e *entry) {
	// Called with c.mu already held by Put below, since golang-lru invokes
	// the eviction callback synchronously from within Add.
	if e.refs > 0 {
		e.evicted = true
		c.pending[key] = append(c.pending[key], e)
	}
}

// Acquire returns the cached plan for key if present, with its reference
// count bumped; the caller must call Release exactly once when done using
// it. ok is false on a cache miss.
func (c *Cache) Acquire(key CacheKey) (plan *Plan, release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, hit := c.store.Get(key)
	if !hit {
		// A plan the LRU evicted while still referenced stays servable
		// until its last reference is released.
		pending := c.pending[key]
		if len(pending) == 0 {
			return nil, nil, false
		}
		e = pending[len(pending)-1]
	}
	e.refs++
	return e.plan, func() { c.release(key, e) }, true
}

// Put installs plan under key, returning an Acquire-equivalent handle so the
// caller building the plan doesn't have to immediately re-acquire it.
func (c *Cache) Put(key CacheKey, plan *Plan) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{plan: plan, refs: 1}
	c.store.Add(key, e)
	return func() { c.release(key, e) }
}

func (c *Cache) release(key CacheKey, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refs--
	if e.refs > 0 || !e.evicted {
		return
	}
	pending := c.pending[key]
	for i, p := range pending {
		if p == e {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		delete(c.pending, key)
	} else {
		c.pending[key] = pending
	}
}

// Len reports the number of plans currently tracked by the LRU store
// (evicted-but-still-referenced plans are not counted, since they have
// already left the bounded store and exist only to satisfy in-flight
// references).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}
