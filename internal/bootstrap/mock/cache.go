package mock

import (
	"sync"
	"time"
)

type cacheItem struct {
	value   any
	expires time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && !now.Before(i.expires)
}

// Cache is an in-memory key/value store with per-key TTL.
type Cache struct {
	*Base

	mu     sync.Mutex
	now    func() time.Time
	items  map[string]cacheItem
	hits   int64
	misses int64
}

var _ Service = (*Cache)(nil)

// NewCache returns an empty cache named name.
func NewCache(name string) *Cache {
	return &Cache{
		Base:  NewBase(name),
		now:   time.Now,
		items: make(map[string]cacheItem),
	}
}

// Reset drops every key and the hit counters and restores the toggles.
func (c *Cache) Reset() {
	c.Base.Reset()
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
}

// Set stores value under key. A ttl of zero never expires.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	if err := c.Guard("set"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item := cacheItem{value: value}
	if ttl > 0 {
		item.expires = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

// Get returns the value under key. Expired keys are evicted and count as a
// miss.
func (c *Cache) Get(key string) (any, bool, error) {
	if err := c.Guard("get"); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if ok && item.expired(c.now()) {
		delete(c.items, key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false, nil
	}
	c.hits++
	return item.value, true, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) (bool, error) {
	if err := c.Guard("delete"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	delete(c.items, key)
	return ok, nil
}

// Flush removes every key.
func (c *Cache) Flush() error {
	if err := c.Guard("flush"); err != nil {
		return err
	}
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
	return nil
}

// Len returns the number of unexpired keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, item := range c.items {
		if !item.expired(now) {
			n++
		}
	}
	return n
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
