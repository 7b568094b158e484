// Package cache provides a process-local key/value store with
// stale-while-revalidate semantics and request coalescing.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleWindow is how long an entry may be served stale past its TTL.
	DefaultStaleWindow = time.Minute
	// DefaultSweepInterval controls how often hard-expired entries are purged.
	DefaultSweepInterval = time.Minute
)

type entry struct {
	value     any
	createdAt time.Time
	staleAt   time.Time
	expiresAt time.Time
}

// Meta describes the freshness of a value returned by GetWithMeta.
type Meta struct {
	Stale bool
	Miss  bool
}

// FetchFunc loads the authoritative value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Options configure a Store.
type Options struct {
	// StaleWindow is layered on top of each entry's TTL; between staleAt and
	// expiresAt a value is served while a background refresh runs.
	StaleWindow time.Duration
	// SweepInterval is the period of the expiry sweep. Zero uses the default;
	// a negative value disables the sweeper (tests).
	SweepInterval time.Duration
	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

// Store is a concurrency-safe in-memory cache. Entries are replaced whole,
// never mutated in place, so concurrent writers are last-writer-wins.
type Store struct {
	staleWindow time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	group        singleflight.Group
	revalMu      sync.Mutex
	revalidating map[string]struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Store and starts its sweep goroutine.
func New(opts Options) *Store {
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = DefaultStaleWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Store{
		staleWindow:  opts.StaleWindow,
		now:          opts.Clock,
		entries:      make(map[string]entry),
		revalidating: make(map[string]struct{}),
		stop:         make(chan struct{}),
	}
	if opts.SweepInterval >= 0 {
		interval := opts.SweepInterval
		if interval == 0 {
			interval = DefaultSweepInterval
		}
		go s.sweepLoop(interval)
	}
	return s
}

// Set stores value under key. The value turns stale after ttl and becomes
// unreadable staleWindow later.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	now := s.now()
	s.mu.Lock()
	s.entries[key] = entry{
		value:     value,
		createdAt: now,
		staleAt:   now.Add(ttl),
		expiresAt: now.Add(ttl + s.staleWindow),
	}
	s.mu.Unlock()
}

// GetWithMeta returns the cached value together with freshness metadata. It
// never blocks and never fetches. Hard expiry is enforced here on every read,
// independent of the sweeper.
func (s *Store) GetWithMeta(key string) (any, Meta) {
	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !now.Before(e.expiresAt) {
		return nil, Meta{Miss: true}
	}
	return e.value, Meta{Stale: !now.Before(e.staleAt)}
}

// GetOrSet is the primary read path. Fresh hits return immediately; stale hits
// return the old value and schedule at most one background revalidation;
// misses fetch, with concurrent callers for the same key coalesced onto a
// single in-flight fetch.
func (s *Store) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	value, meta := s.GetWithMeta(key)
	if !meta.Miss {
		if meta.Stale {
			s.revalidate(key, ttl, fetch)
		}
		return value, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.Set(key, v, ttl)
		return v, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// revalidate refreshes key in the background. Failures are swallowed and the
// stale value stays readable until hard expiry.
func (s *Store) revalidate(key string, ttl time.Duration, fetch FetchFunc) {
	s.revalMu.Lock()
	if _, running := s.revalidating[key]; running {
		s.revalMu.Unlock()
		return
	}
	s.revalidating[key] = struct{}{}
	s.revalMu.Unlock()

	go func() {
		defer func() {
			s.revalMu.Lock()
			delete(s.revalidating, key)
			s.revalMu.Unlock()
		}()
		_, _, _ = s.group.Do(key, func() (any, error) {
			v, err := fetch(context.Background())
			if err != nil {
				return nil, err
			}
			s.Set(key, v, ttl)
			return v, nil
		})
	}()
}

// Invalidate removes a single key.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidatePrefix removes every key sharing the given prefix.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// Flush removes all entries.
func (s *Store) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len reports the number of resident entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweep goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops hard-expired entries. Memory hygiene only: GetWithMeta enforces
// expiry on its own.
func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}
