package namespace

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Cache maps virtual paths to resolved entities. Keys are compared in
// NFC, so an entity whose remote name is decomposed is found under its
// composed spelling too. Entries never expire on their own; mutations
// through the owning Drive remove the entries they affect. Safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entity
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entity)}
}

// Get returns the entity cached under key.
func (c *Cache) Get(key string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(key)]

	return e, ok
}

// Put inserts or replaces the entry for e's virtual path.
func (c *Cache) Put(e Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(e.VirtualPath())] = e
}

// Remove drops key. Missing keys are ignored.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, cacheKey(key))
}

// RemovePrefix drops every key starting with prefix and reports how many
// entries were removed. Pass "dir/" to clear the descendants of dir.
func (c *Cache) RemovePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix = cacheKey(prefix)
	n := 0

	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}

	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func cacheKey(vp string) string {
	return norm.NFC.String(vp)
}
