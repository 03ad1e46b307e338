package assets

import (
	"context"
	"sync"

	"github.com/mapscene/animator/pkg/core"
)

// Cache memoizes successful loads by URL. Failures are not cached so a later
// attempt can succeed.
type Cache struct {
	mu     sync.RWMutex
	loader Loader
	assets map[string]*core.Asset
	hits   int
	misses int
}

// NewCache wraps loader.
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader: loader,
		assets: make(map[string]*core.Asset),
	}
}

// Get returns a cached asset.
func (c *Cache) Get(url string) (*core.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assets[url]
	return a, ok
}

// Load returns the cached asset or loads and stores it.
func (c *Cache) Load(ctx context.Context, url string) (*core.Asset, error) {
	c.mu.Lock()
	if a, ok := c.assets[url]; ok {
		c.hits++
		c.mu.Unlock()
		return a, nil
	}
	c.misses++
	c.mu.Unlock()

	a, err := c.loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.assets[url]; ok {
		return existing, nil
	}
	c.assets[url] = a
	return a, nil
}

// Delete drops one URL.
func (c *Cache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.assets, url)
}

// Reset clears the cache and its counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = make(map[string]*core.Asset)
	c.hits, c.misses = 0, 0
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assets)
}

// Stats returns hit and miss counts since the last Reset.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
