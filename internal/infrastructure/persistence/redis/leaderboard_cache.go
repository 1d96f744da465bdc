// Package redis implements the Redis layer of the stats engine.
package redis

import (
	"context"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cachedPage is the stored form of one leaderboard page.
type cachedPage struct {
	Users []cachedEntry `json:"users"`
	Total int           `json:"total"`
}

// cachedEntry is the stored form of one leaderboard row.
type cachedEntry struct {
	User  string `json:"user"`
	Score int64  `json:"score"`
	Rank  int    `json:"rank"`
}

// LeaderboardCache implements leaderboard.Cache on top of Redis. Each
// requested page is cached whole under a key derived from the query; a
// ranking pass invalidates every page of the affected mode and season.
//
// The cache is strictly an optimization: callers treat any error here as
// a miss and read Postgres instead.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// GetTop returns a cached leaderboard page. Returns ErrCacheMiss when the
// page is not cached.
func (c *LeaderboardCache) GetTop(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, error) {
	key := LeaderboardPageKey(mode.String(), season.String(), limit, offset)

	var stored cachedPage
	if err := c.cache.Get(ctx, key, &stored); err != nil {
		return leaderboard.Page{}, err
	}

	page := leaderboard.Page{
		Entries: make([]leaderboard.Entry, len(stored.Users)),
		Total:   stored.Total,
	}
	for i, e := range stored.Users {
		page.Entries[i] = leaderboard.Entry{
			Mode:   mode,
			Season: season,
			User:   shared.UserID(e.User),
			Score:  e.Score,
			Rank:   e.Rank,
		}
	}

	return page, nil
}

// SetTop caches a leaderboard page with the given TTL under the query
// that produced it. A non-positive TTL falls back to TTLLeaderboardCache:
// pages must never be stored without an expiry, or a missed invalidation
// would serve them stale indefinitely.
func (c *LeaderboardCache) SetTop(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int, page leaderboard.Page, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}

	key := LeaderboardPageKey(mode.String(), season.String(), limit, offset)

	stored := cachedPage{
		Users: make([]cachedEntry, len(page.Entries)),
		Total: page.Total,
	}
	for i, e := range page.Entries {
		stored.Users[i] = cachedEntry{
			User:  string(e.User),
			Score: e.Score,
			Rank:  e.Rank,
		}
	}

	return c.cache.Set(ctx, key, stored, ttl)
}

// Invalidate drops every cached page of a mode and season. Called after a
// ranking pass rewrites scores and ranks.
func (c *LeaderboardCache) Invalidate(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID) error {
	return c.cache.DeleteByPattern(ctx, LeaderboardPattern(mode.String(), season.String()))
}
