package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Signer produces read URLs for object keys.
type Signer interface {
	Presign(ctx context.Context, key string) (string, error)
}

// CachingSigner wraps another Signer with a bounded, TTL-based cache. Entries
// must expire before the URLs they hold.
type CachingSigner struct {
	base  Signer
	cache *expirable.LRU[string, string]
}

// NewCachingSigner caches up to size URLs for ttl each.
func NewCachingSigner(base Signer, size int, ttl time.Duration) *CachingSigner {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingSigner{
		base:  base,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Presign returns a cached URL when available, otherwise it delegates and
// stores the result. Failures are not cached.
func (c *CachingSigner) Presign(ctx context.Context, key string) (string, error) {
	if url, ok := c.cache.Get(key); ok {
		return url, nil
	}

	url, err := c.base.Presign(ctx, key)
	if err != nil {
		return "", err
	}

	c.cache.Add(key, url)
	return url, nil
}

// Purge drops every cached URL.
func (c *CachingSigner) Purge() {
	c.cache.Purge()
}
