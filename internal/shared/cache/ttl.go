// Package cache provides a bounded, expiring in-memory cache.
//
// Entries are evicted least-recently-used once the cache is full and are
// treated as absent once their time-to-live has elapsed. The cache is safe
// for concurrent use.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a size-bounded LRU cache whose entries expire after a fixed duration.
type TTL[V any] struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewTTL creates a cache holding at most maxEntries values for ttl each.
// A non-positive maxEntries is treated as 1.
func NewTTL[V any](maxEntries int, ttl time.Duration, opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}

	return &TTL[V]{
		lru: lru.New(maxEntries),
		ttl: ttl,
		now: o.now,
	}
}

// Get returns the cached value if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	raw, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	e := raw.(entry[V])
	if !c.now().Before(e.expires) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value, replacing any previous one and resetting its expiry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry[V]{value: value, expires: c.now().Add(c.ttl)})
}

// Delete removes a key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
}
