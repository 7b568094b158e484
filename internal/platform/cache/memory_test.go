package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/prismboard/prismboard/testing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(clock *fakeClock, staleWindow time.Duration) *Store {
	return New(Options{
		StaleWindow:   staleWindow,
		SweepInterval: -1,
		Clock:         clock.Now,
	})
}

func TestGetWithMetaFreshStaleExpired(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, 2*time.Second)
	defer store.Close()

	store.Set("k", "v", time.Second)

	value, meta := store.GetWithMeta("k")
	require.False(t, meta.Miss)
	assert.False(t, meta.Stale)
	assert.Equal(t, "v", value)

	clock.Advance(1500 * time.Millisecond)
	value, meta = store.GetWithMeta("k")
	require.False(t, meta.Miss)
	assert.True(t, meta.Stale)
	assert.Equal(t, "v", value)

	// Past ttl+staleWindow the entry must be unreadable even though the
	// sweeper is disabled.
	clock.Advance(2 * time.Second)
	value, meta = store.GetWithMeta("k")
	assert.True(t, meta.Miss)
	assert.Nil(t, value)
}

func TestGetOrSetCoalescesConcurrentFetches(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Minute)
	defer store.Close()

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "fetched", nil
	}

	const workers = 32
	results := make([]any, workers)
	errs := make([]error, workers)
	var started, done sync.WaitGroup
	started.Add(workers)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = store.GetOrSet(context.Background(), "shared", time.Minute, fetch)
		}(i)
	}
	started.Wait()
	// Give the goroutines a beat to reach the singleflight barrier.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fetched", results[i])
	}
}

func TestGetOrSetServesStaleWhileRevalidating(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, 2*time.Second)
	defer store.Close()

	store.Set("k", "old", time.Second)
	clock.Advance(1500 * time.Millisecond)

	var calls atomic.Int64
	fetched := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		close(fetched)
		return "new", nil
	}

	value, err := store.GetOrSet(context.Background(), "k", time.Second, fetch)
	require.NoError(t, err)
	assert.Equal(t, "old", value, "stale hit must return synchronously")

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("background revalidation never ran")
	}
	require.Eventually(t, func() bool {
		v, meta := store.GetWithMeta("k")
		return !meta.Miss && !meta.Stale && v == "new"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), calls.Load(), "exactly one background fetch")
}

func TestGetOrSetStaleSchedulesSingleRevalidation(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Minute)
	defer store.Close()

	store.Set("k", "old", time.Second)
	clock.Advance(2 * time.Second)

	var calls atomic.Int64
	block := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-block
		return "new", nil
	}

	for i := 0; i < 10; i++ {
		value, err := store.GetOrSet(context.Background(), "k", time.Second, fetch)
		require.NoError(t, err)
		assert.Equal(t, "old", value)
	}
	close(block)
	require.Eventually(t, func() bool {
		v, _ := store.GetWithMeta("k")
		return v == "new"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrSetRevalidationFailureKeepsStaleValue(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Minute)
	defer store.Close()

	store.Set("k", "old", time.Second)
	clock.Advance(2 * time.Second)

	attempted := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		close(attempted)
		return nil, errors.New("backend down")
	}

	value, err := store.GetOrSet(context.Background(), "k", time.Second, fetch)
	require.NoError(t, err)
	assert.Equal(t, "old", value)

	<-attempted
	require.Eventually(t, func() bool {
		// The failed refresh must not evict the stale value.
		v, meta := store.GetWithMeta("k")
		return !meta.Miss && v == "old"
	}, time.Second, 10*time.Millisecond)
}

func TestGetOrSetMissPropagatesFetchError(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Minute)
	defer store.Close()

	wantErr := errors.New("backend down")
	_, err := store.GetOrSet(context.Background(), "missing", time.Second, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, meta := store.GetWithMeta("missing")
	assert.True(t, meta.Miss, "failed fetch must not populate the cache")
}

func TestInvalidateAndPrefixAndFlush(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Minute)
	defer store.Close()

	store.Set("authz:role:1:alice", "owner", time.Minute)
	store.Set("authz:role:1:bob", "viewer", time.Minute)
	store.Set("insights:volume:1", 42, time.Minute)

	store.Invalidate("authz:role:1:alice")
	_, meta := store.GetWithMeta("authz:role:1:alice")
	assert.True(t, meta.Miss)

	store.InvalidatePrefix("authz:role:1:")
	_, meta = store.GetWithMeta("authz:role:1:bob")
	assert.True(t, meta.Miss)

	_, meta = store.GetWithMeta("insights:volume:1")
	assert.False(t, meta.Miss)

	store.Flush()
	assert.Equal(t, 0, store.Len())
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock, time.Second)
	defer store.Close()

	store.Set("gone", "v", time.Second)
	store.Set("kept", "v", time.Hour)
	clock.Advance(5 * time.Second)

	store.sweep()
	assert.Equal(t, 1, store.Len())
	_, meta := store.GetWithMeta("kept")
	assert.False(t, meta.Miss)
}
