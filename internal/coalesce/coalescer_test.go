package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/domain"
	"github.com/verigate/verigate/internal/store"
)

func newTestCoalescer() *Coalescer {
	return New(store.NewIdempotencyCache(), store.NewLockTable(), Options{
		IdempotencyTTL: time.Minute,
		LockTTL:        time.Minute,
		PollInterval:   5 * time.Millisecond,
		Grace:          500 * time.Millisecond,
	}, zap.NewNop())
}

func TestDo_ComputesOnceAndReplays(t *testing.T) {
	c := newTestCoalescer()

	var calls int32
	compute := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"ok":true}`), nil
	}

	first, replayed, err := c.Do(context.Background(), "fp1", compute)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := c.Do(context.Background(), "fp1", compute)
	require.NoError(t, err)
	assert.True(t, replayed)

	assert.Equal(t, first, second, "replay must be byte-identical")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ConcurrentCallersOneLeader(t *testing.T) {
	c := newTestCoalescer()

	var calls int32
	compute := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond) // hold the lock while followers poll
		return []byte(`{"n":42}`), nil
	}

	const callers = 16
	results := make([][]byte, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.Do(context.Background(), "fp1", compute)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one leader-side computation")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte(`{"n":42}`), results[i])
	}
}

func TestDo_FollowerGraceExhausted(t *testing.T) {
	c := newTestCoalescer()
	c.opts.Grace = 30 * time.Millisecond

	release := make(chan struct{})
	go func() {
		_, _, _ = c.Do(context.Background(), "fp1", func() ([]byte, error) {
			<-release
			return []byte("late"), nil
		})
	}()

	// Give the leader time to take the lock.
	time.Sleep(10 * time.Millisecond)

	_, _, err := c.Do(context.Background(), "fp1", func() ([]byte, error) {
		t.Error("follower must not compute")
		return nil, nil
	})
	assert.ErrorIs(t, err, domain.ErrInFlight)
	close(release)
}

func TestDo_LeaderErrorLeavesCacheEmpty(t *testing.T) {
	c := newTestCoalescer()

	boom := errors.New("upstream exploded")
	_, _, err := c.Do(context.Background(), "fp1", func() ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// Lock released, cache unpopulated: the next identical request retries.
	var calls int32
	body, replayed, err := c.Do(context.Background(), "fp1", func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("recovered"), body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancelledWhileFollowing(t *testing.T) {
	c := newTestCoalescer()
	c.opts.Grace = time.Minute

	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _, _ = c.Do(context.Background(), "fp1", func() ([]byte, error) {
			<-release
			return []byte("x"), nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Do(ctx, "fp1", func() ([]byte, error) { return nil, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_DistinctFingerprintsIndependent(t *testing.T) {
	c := newTestCoalescer()

	var calls int32
	for _, fp := range []string{"a", "b", "c"} {
		_, _, err := c.Do(context.Background(), fp, func() ([]byte, error) {
			atomic.AddInt32(&calls, 1)
			return []byte(fp), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
