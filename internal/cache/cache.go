// Package cache is a typed, process-local TTL cache.
package cache

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache maps K to V with per-entry expiry. Keys are stored under keyFunc(key).
type Cache[K comparable, V any] struct {
	store   *gocache.Cache
	keyFunc func(K) string
	logger  *slog.Logger

	// mu serializes read-modify-write in Update against plain writes.
	mu sync.Mutex
}

type Options struct {
	// TTL is the expiry for Set. Zero means one hour.
	TTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero means TTL/2.
	CleanupInterval time.Duration
	Logger          *slog.Logger
}

func New[K comparable, V any](opts Options, keyFunc func(K) string) *Cache[K, V] {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = opts.TTL / 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Cache[K, V]{
		store:   gocache.New(opts.TTL, opts.CleanupInterval),
		keyFunc: keyFunc,
		logger:  opts.Logger,
	}
	c.store.OnEvicted(func(key string, _ interface{}) {
		c.logger.Debug("Cache entry evicted", "key", key)
	})
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lookup(c.keyFunc(key))
}

func (c *Cache[K, V]) lookup(k string) (V, bool) {
	var zero V
	raw, ok := c.store.Get(k)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value with the default TTL, or with ttl when one is given.
func (c *Cache[K, V]) Set(key K, value V, ttl ...time.Duration) {
	exp := gocache.DefaultExpiration
	if len(ttl) > 0 {
		exp = ttl[0]
	}

	c.mu.Lock()
	c.store.Set(c.keyFunc(key), value, exp)
	c.mu.Unlock()
}

// Update stores fn(current, found) under key with a fresh ttl and returns it. Concurrent
// Updates of the same key never lose a write.
func (c *Cache[K, V]) Update(key K, ttl time.Duration, fn func(current V, found bool) V) V {
	k := c.keyFunc(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	current, found := c.lookup(k)
	next := fn(current, found)
	c.store.Set(k, next, ttl)
	return next
}

func (c *Cache[K, V]) Delete(key K) {
	c.store.Delete(c.keyFunc(key))
}

func (c *Cache[K, V]) Len() int {
	return c.store.ItemCount()
}

// Close drops every entry. The cache stays usable afterwards.
func (c *Cache[K, V]) Close() error {
	c.store.Flush()
	return nil
}
