// Package configcache provides a ristretto-backed string cache with a
// GetConfig helper that serves repeated config lookups from the cache.
package configcache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Cache is a small key -> string cache; resolved config values are the only
// things this package caches, so the value type is narrowed from the
// teacher's interface{} to string.
type Cache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// Config configures the underlying ristretto instance.
type Config struct {
	NumCounters int64 // number of keys to track frequency (~10x expected items)
	MaxCost     int64 // max cache cost; cost is 1 per entry here
	BufferItems int64
	Logger      *zap.Logger
}

// New creates a ristretto-backed Cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = 64
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{cache: rc, logger: cfg.Logger}, nil
}

// Get retrieves a cached value.
func (c *Cache) Get(key string) (string, bool) {
	v, found := c.cache.Get(key)
	if !found {
		CacheMissesTotal.Inc()
		return "", false
	}
	CacheHitsTotal.Inc()
	s, ok := v.(string)
	return s, ok
}

// Set stores value under key with ttl. ttl of zero means no expiry.
func (c *Cache) Set(key, value string, ttl time.Duration) bool {
	var ok bool
	if ttl <= 0 {
		ok = c.cache.Set(key, value, 1)
	} else {
		ok = c.cache.SetWithTTL(key, value, 1, ttl)
	}
	if ok {
		CacheSetsTotal.Inc()
	}
	return ok
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) {
	c.cache.Del(key)
}

// Wait blocks until ristretto has applied all pending writes. Mainly useful
// in tests that Set then immediately Get.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.cache.Close()
}
