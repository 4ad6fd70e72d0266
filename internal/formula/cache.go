package formula

import (
	"container/list"
	"sync"
)

// Cache memoizes Parse results keyed by source string. Successful parses and
// syntax errors are both remembered. Safe for concurrent use.
//
// A Cache never changes results: Cache.Parse(s) and Parse(s) always agree.
type Cache struct {
	mu      sync.Mutex
	size    int
	order   *list.List
	entries map[string]*list.Element
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	source string
	expr   Expression
	err    error
}

// NewCache returns a Cache holding at most size sources, evicting the least
// recently used. A size < 1 disables memoization.
func NewCache(size int) *Cache {
	return &Cache{
		size:    size,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Parse returns Parse(source), reusing an earlier result when present.
func (c *Cache) Parse(source string) (Expression, error) {
	if c == nil || c.size < 1 {
		return Parse(source)
	}

	c.mu.Lock()
	if el, ok := c.entries[source]; ok {
		c.order.MoveToFront(el)
		c.hits++
		e := el.Value.(*cacheEntry)
		c.mu.Unlock()
		return e.expr, e.err
	}
	c.misses++
	c.mu.Unlock()

	expr, err := Parse(source)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[source]; !ok {
		c.entries[source] = c.order.PushFront(&cacheEntry{source: source, expr: expr, err: err})
		for c.order.Len() > c.size {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).source)
		}
	}
	return expr, err
}

// Len returns the number of cached sources.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Counters returns the hit and miss counts since creation.
func (c *Cache) Counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
