// Package redis implements the Redis layer of the stats engine.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON STATE
// ══════════════════════════════════════════════════════════════════════════════

// SeasonState implements leaderboard.SeasonState on top of Redis. The
// pointer is a single key with no TTL; an unset pointer is a normal state
// in which score accumulation is silently skipped.
type SeasonState struct {
	cache *Cache
}

// NewSeasonState creates a new SeasonState.
func NewSeasonState(cache *Cache) *SeasonState {
	return &SeasonState{cache: cache}
}

// Active returns the active season id, or shared.ErrNoActiveSeason when
// the pointer is not set.
func (s *SeasonState) Active(ctx context.Context) (leaderboard.SeasonID, error) {
	val, err := s.cache.GetString(ctx, ActiveSeasonKey())
	if errors.Is(err, ErrCacheMiss) {
		return "", shared.ErrNoActiveSeason
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active season: %w", err)
	}

	id := leaderboard.SeasonID(val)
	if !id.IsValid() {
		return "", fmt.Errorf("malformed active season pointer %q", val)
	}

	return id, nil
}

// SetActive moves the pointer to a season.
func (s *SeasonState) SetActive(ctx context.Context, id leaderboard.SeasonID) error {
	if !id.IsValid() {
		return fmt.Errorf("malformed season id %q", id)
	}
	if err := s.cache.SetString(ctx, ActiveSeasonKey(), id.String(), 0); err != nil {
		return fmt.Errorf("failed to set active season: %w", err)
	}
	return nil
}
