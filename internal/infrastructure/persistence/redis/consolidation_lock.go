// Package redis implements the Redis layer of the stats engine.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the stored token matches the
// holder's, so an expired-and-reacquired lock is never dropped.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// ══════════════════════════════════════════════════════════════════════════════
// CONSOLIDATION LOCK
// ══════════════════════════════════════════════════════════════════════════════

// ConsolidationLock is a cross-process single-flight guard for the
// consolidation job. Within one process an atomic flag already prevents
// overlap; this lock extends the guarantee across replicas and restarts.
//
// The lock carries a holder token so a release cannot drop a lock that a
// later holder acquired after this one expired.
type ConsolidationLock struct {
	cache *Cache
	key   string
	ttl   time.Duration

	token string
}

// NewConsolidationLock creates a new ConsolidationLock.
func NewConsolidationLock(cache *Cache) *ConsolidationLock {
	return &ConsolidationLock{
		cache: cache,
		key:   LockKey("consolidation"),
		ttl:   TTLConsolidationLock,
	}
}

// TryAcquire attempts to take the lock. Returns false without error when
// another holder owns it.
func (l *ConsolidationLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire consolidation lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.token = token
	return true, nil
}

// Release drops the lock if this instance still holds it. A lock that
// expired and was re-acquired elsewhere is left alone.
func (l *ConsolidationLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}

	token := l.token
	l.token = ""

	if err := releaseScript.Run(ctx, l.cache.Client(), []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release consolidation lock: %w", err)
	}
	return nil
}
