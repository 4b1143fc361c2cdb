// Package gocache provides a [lendguard.Cache] for GET responses backed by
// go-cache, with a bound on the number of entries.
package gocache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/byte4ever/lendguard"
)

const cleanupInterval = time.Minute

// adapter wraps a go-cache instance to implement lendguard.Cache. go-cache
// has no size bound, so the adapter evicts the entry closest to expiry once
// MaxSize is reached.
type adapter struct {
	c       *gocache.Cache
	maxSize int
	mu      sync.Mutex
}

// New creates a response cache. MaxSize from [lendguard.CacheConfig] bounds
// the entry count; zero or less disables the bound. TTL is the default used
// when Set receives a non-positive ttl.
//
//nolint:ireturn // returns the pipeline's cache interface
func New(cfg lendguard.CacheConfig) lendguard.Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}

	return &adapter{
		c:       gocache.New(ttl, cleanupInterval),
		maxSize: cfg.MaxSize,
	}
}

// Get retrieves a cached response by key.
func (a *adapter) Get(key string) (*lendguard.Response, bool) {
	v, ok := a.c.Get(key)
	if !ok {
		return nil, false
	}

	resp, ok := v.(*lendguard.Response)

	return resp, ok
}

// Set stores a response with the given TTL.
func (a *adapter) Set(key string, resp *lendguard.Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxSize > 0 {
		if _, exists := a.c.Get(key); !exists {
			for a.c.ItemCount() >= a.maxSize {
				a.evictOldest()
			}
		}
	}

	a.c.Set(key, resp, ttl)
}

// Delete removes a cached entry by key.
func (a *adapter) Delete(key string) {
	a.c.Delete(key)
}

// Flush removes every entry.
func (a *adapter) Flush() {
	a.c.Flush()
}

// evictOldest drops the entry that expires first. With a uniform TTL that
// is the oldest entry.
func (a *adapter) evictOldest() {
	var (
		oldestKey string
		oldest    int64
		found     bool
	)

	for k, item := range a.c.Items() {
		if !found || item.Expiration < oldest {
			oldestKey, oldest, found = k, item.Expiration, true
		}
	}

	if !found {
		a.c.DeleteExpired()

		return
	}

	a.c.Delete(oldestKey)
}
