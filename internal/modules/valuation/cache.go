package valuation

import (
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ResultCache holds recently computed portfolios, keyed by user, for the
// configured TTL. Entries are stored msgpack-encoded so readers always
// decode a private copy and can never mutate a shared result. Trades
// invalidate the owner's entry; the engine itself never touches this
// cache.
type ResultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewResultCache creates a portfolio result cache
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: map[string]cacheEntry{},
	}
}

// Get returns the cached portfolio for a user, or nil if absent or expired.
func (c *ResultCache) Get(userID string) *Portfolio {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}

	var portfolio Portfolio
	if err := msgpack.Unmarshal(entry.data, &portfolio); err != nil {
		return nil
	}
	return &portfolio
}

// Set stores a portfolio for a user. Encoding failures drop the entry
// silently; the next read recomputes.
func (c *ResultCache) Set(userID string, portfolio *Portfolio) {
	data, err := msgpack.Marshal(portfolio)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.entries[userID] = cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a user's cached portfolio.
func (c *ResultCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}
