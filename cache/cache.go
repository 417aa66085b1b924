package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/13g7895123/stock.warrant/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.QueryResult
	createdAt time.Time
}

// Cache keeps recent query results so repeated chat commands for the same
// stock do not start another browser. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries results for ttl each.
// A ttl <= 0 disables the cache. A background goroutine evicts expired
// entries until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Key identifies a query by everything that changes its answer.
func Key(intent models.QueryIntent) string {
	h := sha256.New()
	h.Write([]byte(intent.Kind))
	h.Write([]byte("|"))
	h.Write([]byte(intent.StockCode))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(intent.MaxPages)))
	h.Write([]byte("|"))
	h.Write([]byte(intent.NameContains))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a result younger than the TTL.
func (c *Cache) Get(key string) (*models.QueryResult, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a successful result. Failed or partial results are not
// cached so the next request crawls again.
func (c *Cache) Set(key string, res *models.QueryResult) {
	if c == nil || c.ttl <= 0 || res == nil || !res.Success || len(res.FailedPages) > 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, so this evicts an arbitrary entry.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{result: res, createdAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the eviction goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
