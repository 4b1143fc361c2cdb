package lendguard

import (
	"net/http"
	"time"
)

type (
	// Cache stores successful GET responses. TTL is passed per Set call; the
	// adapter handles expiration and size bounds. The gocache package
	// provides the default adapter.
	Cache interface {
		// Get retrieves a cached response by key.
		Get(key string) (*Response, bool)
		// Set stores a response with the given TTL.
		Set(key string, resp *Response, ttl time.Duration)
		// Delete removes a cached entry by key.
		Delete(key string)
		// Flush removes every entry.
		Flush()
	}

	// CacheConfig holds configuration for a response cache.
	CacheConfig struct {
		// TTL is how long a cached response is served.
		TTL time.Duration
		// MaxSize is the maximum number of entries; the oldest entry is
		// evicted when full.
		MaxSize int
	}
)

// DefaultCacheConfig mirrors the console's API cache: five minutes, one
// hundred entries.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 5 * time.Minute, MaxSize: 100}
}

// CacheKey returns the cache key for req, or false when req is not
// cacheable. Only bodiless GET requests are cached.
func CacheKey(req *Request) (string, bool) {
	if req.Method != http.MethodGet || len(req.Body) != 0 {
		return "", false
	}

	return req.Method + " " + req.Target(), true
}
