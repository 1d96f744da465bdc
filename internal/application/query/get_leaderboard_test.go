package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
	"github.com/NhanHo/screepsmod-stats/pkg/circuitbreaker"
)

func leaderboardFixture() (*fakeEntries, *fakeSeasonState, *fakeCache, *fakeWorld) {
	entries := &fakeEntries{entries: []leaderboard.Entry{
		{Mode: leaderboard.ModeWorld, Season: "2025-03", User: "alice", Score: 900, Rank: 0},
		{Mode: leaderboard.ModeWorld, Season: "2025-03", User: "bob", Score: 500, Rank: 1},
		{Mode: leaderboard.ModeWorld, Season: "2025-03", User: "carol", Score: 100, Rank: 2},
	}}
	state := &fakeSeasonState{active: "2025-03"}
	w := newFakeWorld()
	w.users["alice"] = world.UserInfo{ID: "alice", Username: "Alice", Badge: json.RawMessage(`{"type":1}`)}
	w.users["bob"] = world.UserInfo{ID: "bob", Username: "Bob"}
	return entries, state, newFakeCache(), w
}

func TestGetLeaderboard_ActiveSeasonPage(t *testing.T) {
	entries, state, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, state, cache, w, circuitbreaker.CacheBreaker(nil))

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, "2025-03", result.Season)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "alice", result.Rows[0].UserID)
	assert.Equal(t, "Alice", result.Rows[0].Username)
	assert.JSONEq(t, `{"type":1}`, string(result.Rows[0].Badge))
	assert.Equal(t, 0, result.Rows[0].Rank)
	assert.Equal(t, "bob", result.Rows[1].UserID)
	assert.Equal(t, int64(500), result.Rows[1].Score)

	// The page went into the cache on the way out.
	assert.Equal(t, 1, cache.stores)
}

func TestGetLeaderboard_CachedPagesExpire(t *testing.T) {
	entries, state, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, state, cache, w, circuitbreaker.CacheBreaker(nil))

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 2})
	require.NoError(t, err)

	// A page stored without a TTL would survive a missed invalidation
	// forever; every store must carry one.
	require.Equal(t, 1, cache.stores)
	assert.Equal(t, leaderboardCacheTTL, cache.lastTTL)
	assert.Positive(t, cache.lastTTL)
}

func TestGetLeaderboard_SecondCallHitsCache(t *testing.T) {
	entries, state, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, state, cache, w, circuitbreaker.CacheBreaker(nil))

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 2})
	require.NoError(t, err)

	entries.listErr = assert.AnError
	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Len(t, result.Rows, 2)
}

func TestGetLeaderboard_OffsetBeyondEnd(t *testing.T) {
	entries, state, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, state, cache, w, circuitbreaker.CacheBreaker(nil))

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 3, result.Total)
}

func TestGetLeaderboard_ValidatesParams(t *testing.T) {
	entries, state, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, state, cache, w, circuitbreaker.CacheBreaker(nil))

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 25})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidParams(err))

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 0})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidParams(err))

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Mode: "galaxy", Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownMode)

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 10, Season: "March"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidSeasonID)
}

func TestGetLeaderboard_NoActiveSeason(t *testing.T) {
	entries, _, cache, w := leaderboardFixture()
	h := NewGetLeaderboardHandler(entries, &fakeSeasonState{}, cache, w, circuitbreaker.CacheBreaker(nil))

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Mode: "world", Limit: 10})
	assert.ErrorIs(t, err, shared.ErrNoActiveSeason)
}

func TestFindLeaderboardEntry_OneSeason(t *testing.T) {
	entries := &fakeEntries{entries: []leaderboard.Entry{
		{Mode: leaderboard.ModeWorld, Season: "2025-02", User: "alice", Score: 300, Rank: 4},
		{Mode: leaderboard.ModeWorld, Season: "2025-03", User: "alice", Score: 900, Rank: 0},
	}}
	h := NewFindLeaderboardEntryHandler(entries)

	result, err := h.Handle(context.Background(), FindLeaderboardEntryQuery{Mode: "world", User: "alice", Season: "2025-03"})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, "2025-03", result.Positions[0].Season)
	assert.Equal(t, int64(900), result.Positions[0].Score)
}

func TestFindLeaderboardEntry_AllSeasons(t *testing.T) {
	entries := &fakeEntries{entries: []leaderboard.Entry{
		{Mode: leaderboard.ModeWorld, Season: "2025-02", User: "alice", Score: 300, Rank: 4},
		{Mode: leaderboard.ModeWorld, Season: "2025-03", User: "alice", Score: 900, Rank: 0},
		{Mode: leaderboard.ModePower, Season: "2025-03", User: "alice", Score: 50, Rank: 2},
	}}
	h := NewFindLeaderboardEntryHandler(entries)

	result, err := h.Handle(context.Background(), FindLeaderboardEntryQuery{Mode: "world", User: "alice"})
	require.NoError(t, err)
	assert.Len(t, result.Positions, 2)
}

func TestFindLeaderboardEntry_NotFound(t *testing.T) {
	h := NewFindLeaderboardEntryHandler(&fakeEntries{})

	_, err := h.Handle(context.Background(), FindLeaderboardEntryQuery{Mode: "world", User: "nobody"})
	assert.ErrorIs(t, err, shared.ErrEntryNotFound)
}
