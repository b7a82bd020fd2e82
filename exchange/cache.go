package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// QuoteCache is a per-adapter TTL cache for quotes. Concurrent callers for
// the same pair before the cache is populated coalesce into a single
// upstream fetch. A non-positive TTL disables caching entirely.
type QuoteCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[Pair]cacheEntry

	sf singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheEntry struct {
	quote Quote
	until time.Time
}

// NewQuoteCache creates a cache holding quotes for ttl.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[Pair]cacheEntry),
	}
}

// TTL returns the configured freshness window.
func (c *QuoteCache) TTL() time.Duration {
	return c.ttl
}

// GetOrFetch returns the cached quote for pair when fresh, otherwise calls
// fetch and stores the result. Concurrent misses for the same pair share
// one fetch call.
func (c *QuoteCache) GetOrFetch(ctx context.Context, pair Pair, fetch func(context.Context) (Quote, error)) (Quote, error) {
	if c.ttl <= 0 {
		c.misses.Add(1)
		return fetch(ctx)
	}

	c.mu.RLock()
	e, ok := c.entries[pair]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.until) {
		c.hits.Add(1)
		return e.quote, nil
	}
	c.misses.Add(1)

	v, err, _ := c.sf.Do(pair.String(), func() (any, error) {
		// Re-check under the flight: another caller may have refreshed
		// the entry between the miss and this closure running.
		c.mu.RLock()
		e, ok := c.entries[pair]
		c.mu.RUnlock()
		if ok && time.Now().Before(e.until) {
			return e.quote, nil
		}

		q, err := fetch(ctx)
		if err != nil {
			return Quote{}, err
		}

		c.mu.Lock()
		c.entries[pair] = cacheEntry{quote: q, until: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}

// Flush drops every cached entry.
func (c *QuoteCache) Flush() {
	c.mu.Lock()
	c.entries = make(map[Pair]cacheEntry)
	c.mu.Unlock()
}

// Stats returns the cumulative hit and miss counts.
func (c *QuoteCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
