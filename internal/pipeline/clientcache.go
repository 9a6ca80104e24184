package pipeline

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// clientCacheMax bounds how many per-device provider clients are kept alive
// at once (§9 LRU client cache design note).
const clientCacheMax = 20

// ClientCache is a bounded LRU keyed by a provider's (base_url, api_key)
// pair, used when a device's ProviderConfig overrides the process-wide
// default endpoint. Moves an entry to most-recently-used on every access and
// evicts the oldest entry once the cache is full.
type ClientCache[T any] struct {
	mu    sync.Mutex
	items *orderedmap.OrderedMap[string, T]
	max   int
}

// NewClientCache creates an empty cache bounded at clientCacheMax entries.
func NewClientCache[T any]() *ClientCache[T] {
	return &ClientCache[T]{items: orderedmap.New[string, T](), max: clientCacheMax}
}

// Get returns the cached client for key, constructing and storing one via
// factory on a miss. Every hit or miss moves key to the most-recently-used
// position.
func (c *ClientCache[T]) Get(key string, factory func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items.Get(key); ok {
		// Re-insert to move key to the most-recently-used (back) position.
		c.items.Delete(key)
		c.items.Set(key, v)
		return v
	}

	v := factory()
	c.items.Set(key, v)

	if c.items.Len() > c.max {
		if oldest := c.items.Oldest(); oldest != nil {
			c.items.Delete(oldest.Key)
		}
	}

	return v
}
