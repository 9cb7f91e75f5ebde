package translate

import "sync"

// Cache is the global text→translation cache. It is append-only for the
// lifetime of the process: once a source text maps to a translation it is
// never replaced or evicted, and scope changes in the engine never touch it.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Get returns the cached translation for source, if any.
func (c *Cache) Get(source string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[source]
	return v, ok
}

// Put records a translation. The first write for a given source wins;
// later writes are ignored so the mapping stays stable.
func (c *Cache) Put(source, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[source]; exists {
		return
	}
	c.m[source] = translated
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
