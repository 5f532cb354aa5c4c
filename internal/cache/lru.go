package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a tagged cache with TTL and size-based eviction.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
	tags    map[string]map[string]struct{}
}

type cacheItem[T any] struct {
	key       string
	tags      []string
	data      T
	expiresAt time.Time
}

var _ Cache[[]byte] = (*LRUCache[[]byte])(nil)

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewLRUCache creates a cache holding at most maxSize entries, each for ttl.
// A non-positive maxSize means unbounded.
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option) *LRUCache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		tags:    make(map[string]map[string]struct{}),
	}
}

// Get returns the live value for key.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores data under key and indexes it by tags, replacing any previous entry.
func (c *LRUCache[T]) Set(key string, tags []string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}

	item := &cacheItem[T]{
		key:       key,
		tags:      append([]string(nil), tags...),
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}
	c.items[key] = c.lru.PushFront(item)
	for _, tag := range item.tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	if c.maxSize > 0 && c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// InvalidateTag drops every entry carrying tag and returns how many went.
func (c *LRUCache[T]) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tags[tag]
	removed := 0
	for key := range keys {
		if elem, ok := c.items[key]; ok {
			c.removeElement(elem)
			removed++
		}
	}
	delete(c.tags, tag)
	return removed
}

// Purge empties the cache.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.tags = make(map[string]map[string]struct{})
	c.lru.Init()
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	for _, tag := range item.tags {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, item.key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
