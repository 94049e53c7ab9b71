package utils

import "sync"

// Cache keeps values for the lifetime of a single run. Nothing is persisted.
type Cache[V any] struct {
	mu     sync.RWMutex
	items  map[string]V
	hits   int
	misses int
}

func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		items: make(map[string]V),
	}
}

// Missing returns the distinct keys that are not cached yet, in first-seen
// order, and records a hit or a miss for every key.
func (c *Cache[V]) Missing(keys []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	missing := []string{}
	seen := make(map[string]bool)
	for _, key := range keys {
		if _, exists := c.items[key]; exists {
			c.hits += 1
			continue
		}

		c.misses += 1
		if !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	return missing
}

func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.items[key]
	return value, ok
}

func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

func (c *Cache[V]) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.hits+c.misses > 0 {
		return float64(c.hits) / float64(c.hits+c.misses)
	}
	return 0.0
}
