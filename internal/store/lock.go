package store

import (
	"sync"
	"time"
)

// LockTable is a TTL-bounded mutual-exclusion table keyed by fingerprint. At
// most one lock is active per key at any instant. Leaders release their lock
// explicitly on every exit path; the TTL only bounds the stall window if a
// leader dies without releasing.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Acquire attempts to take the lock for fp with the given ttl. It returns true
// when the caller became the leader. An expired lock is treated as free.
func (l *LockTable) Acquire(fp string, ttl time.Duration) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.locks[fp]; held && now.Before(expiry) {
		return false
	}
	l.locks[fp] = now.Add(ttl)
	return true
}

// Release frees the lock for fp. Releasing an absent lock is a no-op.
func (l *LockTable) Release(fp string) {
	l.mu.Lock()
	delete(l.locks, fp)
	l.mu.Unlock()
}
