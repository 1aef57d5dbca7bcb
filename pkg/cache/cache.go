package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Key derives a content-addressed cache key for a GET request from the endpoint and the
// parameters in sorted order. Values are hashed verbatim: whitespace inside a SPARQL literal
// is significant.
func Key(endpoint string, params url.Values) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimRight(endpoint, "/")))
	h.Write([]byte{'?'})
	h.Write([]byte(params.Encode()))
	return "wd_" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a process-local Cacher.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]byte)}
}

func (c *MemoryCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *MemoryCache) SetCache(ctx context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]byte(nil), val...)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// NoCache never stores anything.
type NoCache struct{}

func (NoCache) GetCache(ctx context.Context, key string) ([]byte, bool)    { return nil, false }
func (NoCache) SetCache(ctx context.Context, key string, val []byte) error { return nil }
