// Package coalesce deduplicates concurrent identical requests: the first
// caller for a fingerprint becomes the leader and computes, followers poll the
// idempotency cache for the leader's bytes within a bounded grace period.
package coalesce

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/store"
)

// Options are the tunable timings of the coordinator.
type Options struct {
	// IdempotencyTTL is how long a computed response replays from cache.
	IdempotencyTTL time.Duration
	// LockTTL bounds the stall window if a leader dies without releasing.
	LockTTL time.Duration
	// PollInterval is how often a follower re-checks the cache.
	PollInterval time.Duration
	// Grace is how long a follower polls before giving up with ErrInFlight.
	Grace time.Duration
}

// Coalescer coordinates leader election and follower polling over the shared
// idempotency cache and lock table.
type Coalescer struct {
	cache  *store.IdempotencyCache
	locks  *store.LockTable
	opts   Options
	logger *zap.Logger
}

// New creates a Coalescer over the given cache and lock table.
func New(cache *store.IdempotencyCache, locks *store.LockTable, opts Options, logger *zap.Logger) *Coalescer {
	return &Coalescer{
		cache:  cache,
		locks:  locks,
		opts:   opts,
		logger: logger,
	}
}

// Do runs compute at most once per fingerprint within the idempotency TTL.
// The returned bool is true when the bytes were replayed from cache rather
// than computed by this call. Followers that outlast the grace period receive
// domain.ErrInFlight. A leader whose compute fails releases the lock without
// populating the cache, so the next identical request may retry.
func (c *Coalescer) Do(ctx context.Context, fp string, compute func() ([]byte, error)) ([]byte, bool, error) {
	if body, ok := c.cache.Lookup(fp); ok {
		c.logger.Debug("Replaying cached response", zap.String("fingerprint", fp))
		return body, true, nil
	}

	if c.locks.Acquire(fp, c.opts.LockTTL) {
		defer c.locks.Release(fp)

		body, err := compute()
		if err != nil {
			return nil, false, err
		}
		c.cache.Store(fp, body, c.opts.IdempotencyTTL)
		return body, false, nil
	}

	return c.follow(ctx, fp)
}

// follow polls the cache until the leader's result appears or the grace
// deadline elapses. Short sleeps instead of a busy spin keep follower latency
// bounded independent of leader latency.
func (c *Coalescer) follow(ctx context.Context, fp string) ([]byte, bool, error) {
	deadline := time.NewTimer(c.opts.Grace)
	defer deadline.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-deadline.C:
			c.logger.Debug("Follower grace elapsed", zap.String("fingerprint", fp))
			return nil, false, domain.ErrInFlight
		case <-ticker.C:
			if body, ok := c.cache.Lookup(fp); ok {
				return body, true, nil
			}
		}
	}
}
