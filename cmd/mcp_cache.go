package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/mj1618/findclose/internal/model"
	"github.com/mj1618/findclose/internal/platform"
)

// mcpCacheKey identifies a unique page read.
type mcpCacheKey struct {
	URL      string
	File     string
	HTML     string
	Viewport model.Size
}

func cacheKeyOf(opts platform.ReadOptions) mcpCacheKey {
	return mcpCacheKey{URL: opts.URL, File: opts.File, HTML: opts.HTML, Viewport: opts.Viewport}
}

// mcpCacheEntry holds a read document with its timestamp.
type mcpCacheEntry struct {
	doc       *model.Document
	timestamp time.Time
}

// mcpDocCache provides a TTL-based cache for read documents, so repeated
// tool calls on one page share element identity.
type mcpDocCache struct {
	mu      sync.Mutex
	entries map[mcpCacheKey]mcpCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// newMCPDocCache creates a new cache. A ttl of 0 disables caching.
func newMCPDocCache(ttl time.Duration) *mcpDocCache {
	return &mcpDocCache{
		entries: make(map[mcpCacheKey]mcpCacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// readDocument returns the cached document if within TTL, otherwise reads
// fresh. The caller must hold the provider mutex.
func (c *mcpDocCache) readDocument(ctx context.Context, reader platform.Reader, opts platform.ReadOptions) (*model.Document, error) {
	if c.ttl == 0 {
		return reader.ReadDocument(ctx, opts)
	}

	key := cacheKeyOf(opts)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.timestamp) < c.ttl {
		doc := entry.doc
		c.mu.Unlock()
		return doc, nil
	}
	c.mu.Unlock()

	doc, err := reader.ReadDocument(ctx, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = mcpCacheEntry{doc: doc, timestamp: c.now()}
	c.mu.Unlock()

	return doc, nil
}

// invalidate removes the entry for opts.
func (c *mcpDocCache) invalidate(opts platform.ReadOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKeyOf(opts))
}

// invalidateAll clears the entire cache.
func (c *mcpDocCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[mcpCacheKey]mcpCacheEntry)
}
