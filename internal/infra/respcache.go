package infra

import (
	"container/list"
	"sync"
)

// ResponseCache is a bounded in-memory cache of raw response bytes
// keyed by request signature. It is bounded by entry count and total
// byte size with least-recently-used eviction. Entries carry no TTL:
// staleness policy belongs to the caller, not the cache.
// Thread-safe for concurrent use.
type ResponseCache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int
	bytes      int
	order      *list.List // front = most recently used
	items      map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewResponseCache creates a cache bounded by maxEntries and maxBytes.
func NewResponseCache(maxEntries, maxBytes int) *ResponseCache {
	return &ResponseCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the cached bytes for key and marks the entry recently used.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Put stores data under key, evicting least-recently-used entries as
// needed to satisfy the count and byte bounds. Values larger than the
// byte bound are not cached at all.
func (c *ResponseCache) Put(key string, data []byte) {
	if len(data) > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		c.bytes += len(data) - len(entry.data)
		entry.data = data
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&cacheEntry{key: key, data: data})
		c.items[key] = el
		c.bytes += len(data)
	}

	for c.order.Len() > c.maxEntries || c.bytes > c.maxBytes {
		c.evictOldest()
	}
}

// Delete removes key from the cache. Used by readers to lazily evict
// entries that fail to decode.
func (c *ResponseCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Len returns the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Bytes returns the current total payload size.
func (c *ResponseCache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// evictOldest must be called with the mutex held.
func (c *ResponseCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
}

// removeElement must be called with the mutex held.
func (c *ResponseCache) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.items, entry.key)
	c.bytes -= len(entry.data)
}
