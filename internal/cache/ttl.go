package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Defaults for the in-process cache
const (
	DefaultCapacity = 100
	DefaultTTL      = time.Hour
)

type ttlEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// TTLCache is a fixed-capacity in-process cache. Entries expire after the TTL and, when the
// cache is full, the least recently inserted entry is evicted. Safe for concurrent use.
type TTLCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	entries map[string]*list.Element
	order   *list.List // front is the oldest insertion

	stop     chan struct{}
	stopOnce sync.Once
}

// TTLOption configures a TTLCache
type TTLOption func(*TTLCache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) TTLOption {
	return func(c *TTLCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTTLCache creates a cache; non-positive capacity or ttl use the defaults
func NewTTLCache(capacity int, ttl time.Duration, opts ...TTLOption) *TTLCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTLCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache. Expired entries are removed on access.
func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*ttlEntry)
	if !c.now().Before(e.expires) {
		c.removeElement(el)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements Cache. Overwriting a key counts as a new insertion.
func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	for c.order.Len() >= c.capacity {
		c.removeElement(c.order.Front())
	}

	e := &ttlEntry{key: key, value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	c.entries[key] = c.order.PushBack(e)
	return nil
}

// Delete implements Cache
func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until they are purged
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every expired entry and returns how many were removed
func (c *TTLCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*ttlEntry).expires) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// StartJanitor purges expired entries every interval until Close is called
func (c *TTLCache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Purge()
			case <-c.stop:
				return
			}
		}
	}()
}

// Close stops the janitor and drops all entries
func (c *TTLCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// removeElement unlinks an entry; caller holds the lock
func (c *TTLCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*ttlEntry).key)
}
