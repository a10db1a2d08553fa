package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe in-memory map whose entries expire after ttl.
// Expired entries are dropped lazily, by a sweep that runs at most once per
// ttl during writes.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	items     map[K]*entry[V]
	ttl       time.Duration
	sliding   bool
	lastSweep time.Time
	now       func() time.Time
}

type Option func(*options)

type options struct {
	sliding bool
	now     func() time.Time
}

// WithSlidingExpiry renews an entry's ttl on every read.
func WithSlidingExpiry() Option {
	return func(o *options) { o.sliding = true }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[K comparable, V any](ttl time.Duration, opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		items:     make(map[K]*entry[V]),
		ttl:       ttl,
		sliding:   o.sliding,
		lastSweep: o.now(),
		now:       o.now,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, c.now())
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweepLocked(now)
	c.items[key] = &entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// GetOrCreate returns the live value for key, storing create() when there is
// none. create runs under the cache lock and must not call back into it.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if v, ok := c.getLocked(key, now); ok {
		return v
	}
	c.sweepLocked(now)
	v := create()
	c.items[key] = &entry[V]{value: v, expiresAt: now.Add(c.ttl)}
	return v
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts stored entries, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) getLocked(key K, now time.Time) (V, bool) {
	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if now.After(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	if c.sliding {
		e.expiresAt = now.Add(c.ttl)
	}
	return e.value, true
}

func (c *Cache[K, V]) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.ttl {
		return
	}
	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
		}
	}
	c.lastSweep = now
}
