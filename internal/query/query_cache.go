package query

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultParseCacheSize is the capacity used when none is configured.
const DefaultParseCacheSize = 256

type cacheEntry struct {
	text string
	expr Expression
}

// ParseCache is a bounded cache mapping query text to its parsed expression.
// Only unrestricted parses without context values are cacheable, because the
// result of any other parse depends on caller-supplied state.
//
// Eviction strategy: when the cache reaches its capacity limit the entire map is
// replaced. This is simpler than a true LRU and sufficient for the target use-case
// (a small number of distinct filter queries repeated many times).
//
// Thread safety: all methods are safe for concurrent use. Cached expressions
// are immutable and shared between callers.
type ParseCache struct {
	mu    sync.RWMutex
	items map[uint64]cacheEntry
	max   int
}

// NewParseCache creates a cache holding at most size expressions.
// A size <= 0 uses DefaultParseCacheSize.
func NewParseCache(size int) *ParseCache {
	if size <= 0 {
		size = DefaultParseCacheSize
	}
	return &ParseCache{
		items: make(map[uint64]cacheEntry, size),
		max:   size,
	}
}

func (c *ParseCache) get(text string) (Expression, bool) {
	key := xxhash.Sum64String(text)
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	// Guard against hash collisions.
	if !ok || entry.text != text {
		return nil, false
	}
	return entry.expr, true
}

func (c *ParseCache) put(text string, expr Expression) {
	key := xxhash.Sum64String(text)
	c.mu.Lock()
	if len(c.items) >= c.max {
		// Evict everything and start fresh rather than tracking individual entry ages.
		c.items = make(map[uint64]cacheEntry, c.max)
	}
	c.items[key] = cacheEntry{text: text, expr: expr}
	c.mu.Unlock()
}

// Len returns the number of cached expressions.
func (c *ParseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Parse returns the cached expression for text, parsing and caching it on a
// miss. The boolean reports a cache hit. Errors are not cached.
func (c *ParseCache) Parse(text string) (Expression, bool, error) {
	if expr, ok := c.get(text); ok {
		return expr, true, nil
	}
	result, err := ParseString(text, nil, nil)
	if err != nil {
		return nil, false, err
	}
	c.put(text, result.Expression)
	return result.Expression, false, nil
}
