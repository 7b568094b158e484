package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyRetention is how long a processed delivery key is remembered.
// Providers retry failed webhooks for at most 24h, so a day of memory
// covers every replay window we have seen.
const DefaultKeyRetention = 24 * time.Hour

// IdempotencyStore remembers processed delivery keys in Redis.
type IdempotencyStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewIdempotencyStore constructs the store. A zero retention falls back
// to DefaultKeyRetention.
func NewIdempotencyStore(client *redis.Client, retention time.Duration) *IdempotencyStore {
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	return &IdempotencyStore{client: client, retention: retention}
}

func (s *IdempotencyStore) redisKey(workspaceID int64, key string) string {
	return fmt.Sprintf("ingest:idem:%d:%s", workspaceID, key)
}

// CheckAndInsert claims the key, failing with ErrIdempotencyConflict if
// another delivery already holds it. The claim expires on its own so the
// store needs no sweeper.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, workspaceID int64, key string) error {
	if s == nil || s.client == nil {
		return errors.New("ingest: idempotency store not initialised")
	}
	if key == "" {
		return ErrKeyRequired
	}
	ok, err := s.client.SetNX(ctx, s.redisKey(workspaceID, key), "1", s.retention).Result()
	if err != nil {
		return fmt.Errorf("ingest: claim key: %w", err)
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a claimed key, used to roll back failed processing so
// the provider's retry can succeed.
func (s *IdempotencyStore) Delete(ctx context.Context, workspaceID int64, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return ErrKeyRequired
	}
	return s.client.Del(ctx, s.redisKey(workspaceID, key)).Err()
}
