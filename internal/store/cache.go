package store

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// IdempotencyCache maps a request fingerprint to the serialized response it
// produced. While an entry is unexpired, every lookup returns byte-identical
// bytes. Expired entries are treated as absent and removed lazily on read;
// StartSweeper bounds memory for fingerprints that are never read again.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Lookup returns the cached response bytes for fp, if present and unexpired.
// The returned slice is a copy; callers may not mutate cached state.
func (c *IdempotencyCache) Lookup(fp string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, fp)
		return nil, false
	}

	body := make([]byte, len(entry.body))
	copy(body, entry.body)
	return body, true
}

// Store caches body under fp for ttl. The bytes are copied in so later
// mutation by the caller cannot change what replays see.
func (c *IdempotencyCache) Store(fp string, body []byte, ttl time.Duration) {
	stored := make([]byte, len(body))
	copy(stored, body)

	c.mu.Lock()
	c.entries[fp] = cacheEntry{body: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len reports the number of live entries (expired entries may still count
// until swept or read).
func (c *IdempotencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper launches a goroutine that periodically removes expired entries
// until ctx is cancelled.
func (c *IdempotencyCache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *IdempotencyCache) sweep() {
	now := c.now()
	c.mu.Lock()
	for fp, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, fp)
		}
	}
	c.mu.Unlock()
}
