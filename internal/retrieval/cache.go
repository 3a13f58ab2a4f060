// ABOUTME: Bounded LRU of (query -> embedding) to avoid re-embedding identical queries (spec.md section 5)
package retrieval

import (
	"container/list"
	"sync"
)

type embedCacheEntry struct {
	key   string
	value []float32
}

type embedCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func newEmbedCache(capacity int) *embedCache {
	return &embedCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *embedCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*embedCacheEntry).value, true
}

func (c *embedCache) put(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*embedCacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&embedCacheEntry{key: key, value: value})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*embedCacheEntry).key)
		}
	}
}
