package suggest

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/spice-ingest/internal/service"
)

// DefaultCacheTTL is used when NewCache is given a zero TTL.
const DefaultCacheTTL = 15 * time.Minute

type cacheEntry struct {
	expiry time.Time
	value  string
	ok     bool
}

// Cache memoizes another suggester's answers, declines included. Errors are
// not cached. Call Close to stop the cleanup goroutine.
type Cache struct {
	next    service.Suggester
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewCache wraps next with a TTL cache.
func NewCache(next service.Suggester, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	c := &Cache{
		next:    next,
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup(cleanupInterval(ttl))
	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 5*time.Minute {
		return ttl
	}
	return 5 * time.Minute
}

// cacheKey covers every input a wrapped suggester may read. The charge is
// part of it because amount-conditioned rules answer differently per amount.
func cacheKey(req service.SuggestionRequest) string {
	title, charge := "", ""
	if req.Record != nil {
		title = req.Record.Title
		charge = req.Record.Charge.String()
	}
	return req.FormatID + "\x00" + req.Column + "\x00" + req.Value + "\x00" + title + "\x00" + charge
}

// Suggest implements service.Suggester.
func (c *Cache) Suggest(ctx context.Context, req service.SuggestionRequest) (string, bool, error) {
	key := cacheKey(req)
	if entry, found := c.get(key); found {
		return entry.value, entry.ok, nil
	}

	value, ok, err := c.next.Suggest(ctx, req)
	if err != nil {
		return "", false, err
	}
	c.set(key, cacheEntry{value: value, ok: ok})
	return value, ok, nil
}

func (c *Cache) get(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) set(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.expiry = time.Now().Add(c.ttl)
	c.entries[key] = entry
}

func (c *Cache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Len returns the number of cached entries, expired ones included until the
// next cleanup.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
