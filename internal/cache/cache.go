// Package cache holds recently rewritten documents in memory.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache is a bounded, TTL-limited in-memory cache. It is safe for
// concurrent use. The zero value is not usable; call New.
type Cache[V any] struct {
	mu         sync.RWMutex
	store      map[string]*entry[V]
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	done chan struct{}
	once sync.Once
}

// New creates a cache holding at most maxEntries values for ttl each.
// maxEntries <= 0 disables caching: Get always misses and Set is a no-op.
// A background goroutine evicts expired entries until Close is called.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		store:      make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	if maxEntries > 0 && ttl > 0 {
		go c.cleanupLoop(cleanupInterval(ttl))
	}
	return c
}

// Key derives a cache key from document content and the options that
// affect its rewrite.
func Key(content string, groupByDomain, keepDomainNames bool, htmlMode string, render bool) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(groupByDomain)))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(keepDomainNames)))
	h.Write([]byte("|"))
	h.Write([]byte(htmlMode))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(render)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.maxEntries <= 0 {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. At capacity, expired entries are dropped
// first; if none expired, an arbitrary entry is evicted.
func (c *Cache[V]) Set(key string, value V) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictExpiredLocked()
		if len(c.store) >= c.maxEntries {
			for k := range c.store {
				delete(c.store, k)
				break
			}
		}
	}

	c.store[key] = &entry[V]{value: value, createdAt: c.now()}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl
}

func (c *Cache[V]) evictExpiredLocked() {
	for k, e := range c.store {
		if c.expired(e) {
			delete(c.store, k)
		}
	}
}

func (c *Cache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			c.mu.Unlock()
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 4; interval < 5*time.Minute {
		return max(interval, time.Second)
	}
	return 5 * time.Minute
}
