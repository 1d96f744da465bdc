package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

func TestSeasonForTime(t *testing.T) {
	season := SeasonForTime(time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, SeasonID("2024-01"), season.ID)
	assert.Equal(t, "January 2024", season.Name)
	assert.True(t, season.ID.IsValid())

	// Same month yields the same season regardless of day.
	again := SeasonForTime(time.Date(2024, time.January, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, season.ID, again.ID)
	assert.Equal(t, season.Name, again.Name)
}

func TestScoringMode_Metric(t *testing.T) {
	assert.Equal(t, stats.MetricEnergyControl, ModeWorld.Metric())
	assert.Equal(t, stats.MetricPowerProcessed, ModePower.Metric())
	assert.False(t, ScoringMode("bogus").IsValid())
}

func TestStandings_FirstScores(t *testing.T) {
	// Two users score {50, 30} with no prior entries: ranks 0 and 1.
	s := LoadStandings(ModeWorld, "2024-01", nil)
	s.ApplyDeltas(map[shared.UserID]int64{"alice": 50, "bob": 30})
	s.Rank()

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, shared.UserID("alice"), entries[0].User)
	assert.Equal(t, int64(50), entries[0].Score)
	assert.Equal(t, 0, entries[0].Rank)
	assert.Equal(t, shared.UserID("bob"), entries[1].User)
	assert.Equal(t, int64(30), entries[1].Score)
	assert.Equal(t, 1, entries[1].Rank)

	plan := s.Diff()
	assert.Len(t, plan.Inserts, 2)
	assert.Empty(t, plan.Updates)
}

func TestStandings_DenseRanks(t *testing.T) {
	existing := []Entry{
		{Mode: ModeWorld, Season: "2024-01", User: "a", Score: 90, Rank: 0},
		{Mode: ModeWorld, Season: "2024-01", User: "b", Score: 70, Rank: 1},
		{Mode: ModeWorld, Season: "2024-01", User: "c", Score: 70, Rank: 2},
		{Mode: ModeWorld, Season: "2024-01", User: "d", Score: 10, Rank: 3},
	}

	s := LoadStandings(ModeWorld, "2024-01", existing)
	s.ApplyDeltas(map[shared.UserID]int64{"d": 100, "e": 5})
	s.Rank()

	entries := s.Entries()
	require.Len(t, entries, 5)

	seen := make(map[int]bool)
	for i, e := range entries {
		assert.Equal(t, i, e.Rank)
		assert.False(t, seen[e.Rank])
		seen[e.Rank] = true
	}
	assert.Equal(t, shared.UserID("d"), entries[0].User)
	assert.Equal(t, shared.UserID("e"), entries[4].User)
}

func TestStandings_StableTieBreak(t *testing.T) {
	// Equal scores keep the prior relative order of the loaded rows.
	existing := []Entry{
		{Mode: ModeWorld, Season: "2024-01", User: "first", Score: 40, Rank: 0},
		{Mode: ModeWorld, Season: "2024-01", User: "second", Score: 40, Rank: 1},
		{Mode: ModeWorld, Season: "2024-01", User: "third", Score: 40, Rank: 2},
	}

	s := LoadStandings(ModeWorld, "2024-01", existing)
	s.ApplyDeltas(nil)
	s.Rank()

	entries := s.Entries()
	assert.Equal(t, shared.UserID("first"), entries[0].User)
	assert.Equal(t, shared.UserID("second"), entries[1].User)
	assert.Equal(t, shared.UserID("third"), entries[2].User)
}

func TestStandings_RerankWithoutDeltasIsDeterministic(t *testing.T) {
	existing := []Entry{
		{Mode: ModePower, Season: "2024-02", User: "a", Score: 10, Rank: 0},
		{Mode: ModePower, Season: "2024-02", User: "b", Score: 10, Rank: 1},
		{Mode: ModePower, Season: "2024-02", User: "c", Score: 3, Rank: 2},
	}

	s := LoadStandings(ModePower, "2024-02", existing)
	s.ApplyDeltas(nil)
	s.Rank()

	// Nothing changed: the differential plan is empty.
	assert.True(t, s.Diff().IsEmpty())

	for i, e := range s.Entries() {
		assert.Equal(t, existing[i].User, e.User)
		assert.Equal(t, existing[i].Rank, e.Rank)
	}
}

func TestStandings_DiffOnlyChangedRows(t *testing.T) {
	existing := []Entry{
		{Mode: ModeWorld, Season: "2024-01", User: "a", Score: 100, Rank: 0},
		{Mode: ModeWorld, Season: "2024-01", User: "b", Score: 50, Rank: 1},
		{Mode: ModeWorld, Season: "2024-01", User: "c", Score: 20, Rank: 2},
	}

	s := LoadStandings(ModeWorld, "2024-01", existing)
	s.ApplyDeltas(map[shared.UserID]int64{"c": 5})
	s.Rank()

	plan := s.Diff()
	assert.Empty(t, plan.Inserts)
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, shared.UserID("c"), plan.Updates[0].User)
	assert.Equal(t, int64(25), plan.Updates[0].Score)
	assert.Equal(t, 2, plan.Updates[0].Rank)
}

func TestDeltasFromEvents(t *testing.T) {
	now := time.Now()
	events := []stats.RawStatEvent{
		stats.NewRawStatEvent("W1N1", "alice", now, stats.Metrics{stats.MetricEnergyControl: 30, stats.MetricEnergyHarvested: 999}),
		stats.NewRawStatEvent("W2N2", "alice", now, stats.Metrics{stats.MetricEnergyControl: 20}),
		stats.NewRawStatEvent("W1N1", "bob", now, stats.Metrics{stats.MetricPowerProcessed: 5}),
	}

	deltas := DeltasFromEvents(ModeWorld, events)
	require.Len(t, deltas, 1)
	assert.Equal(t, int64(50), deltas["alice"])

	power := DeltasFromEvents(ModePower, events)
	require.Len(t, power, 1)
	assert.Equal(t, int64(5), power["bob"])
}
