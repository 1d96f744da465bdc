package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
)

func TestGetMapStats_OwnershipAndBreakdown(t *testing.T) {
	registry := stats.DefaultRegistry()
	g, _ := registry.ByMinutes(8)

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	idx := g.BucketIndex(now)

	w := newFakeWorld()
	w.rooms["W1N1"] = world.RoomState{Room: "W1N1", Owner: "alice", Level: 7, SafeMode: true}
	w.rooms["W2N2"] = world.RoomState{
		Room: "W2N2",
		Reservation: &world.Reservation{
			User:    "bob",
			EndTime: now.Add(4 * time.Hour),
		},
	}
	w.users["alice"] = world.UserInfo{ID: "alice", Username: "Alice"}
	w.users["bob"] = world.UserInfo{ID: "bob", Username: "Bob"}

	buckets := newFakeBuckets()
	buckets.add(g, idx, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 120})
	buckets.add(g, idx-2, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 30})
	buckets.add(g, idx, "bob", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 10})
	// Wrong metric never leaks into the overlay.
	buckets.add(g, idx, "alice", "W2N2", stats.Metrics{stats.MetricEnergyControl: 500})

	h := NewGetMapStatsHandler(w, buckets, registry).WithClock(func() time.Time { return now })

	result, err := h.Handle(context.Background(), GetMapStatsQuery{
		Rooms:    []string{"W1N1", "W2N2", "W9N9"},
		StatName: "energyHarvested8",
	})
	require.NoError(t, err)

	// Unknown room W9N9 is absent rather than erroring the batch.
	require.Len(t, result.Rooms, 2)

	owned := result.Rooms["W1N1"]
	require.NotNil(t, owned.Own)
	assert.Equal(t, "alice", owned.Own.User)
	assert.Equal(t, 7, owned.Own.Level)
	assert.True(t, owned.SafeMode)
	assert.Equal(t, int64(150), owned.Stats["alice"])
	assert.Equal(t, int64(10), owned.Stats["bob"])

	reserved := result.Rooms["W2N2"]
	assert.Nil(t, reserved.Own)
	require.NotNil(t, reserved.Reservation)
	assert.Equal(t, "bob", reserved.Reservation.User)

	assert.Equal(t, "Alice", result.Users["alice"].Username)
	assert.Equal(t, "Bob", result.Users["bob"].Username)
}

func TestGetMapStats_RejectsMalformedStatName(t *testing.T) {
	h := NewGetMapStatsHandler(newFakeWorld(), newFakeBuckets(), stats.DefaultRegistry())

	for _, statName := range []string{"energyHarvested", "bogus8", "energyHarvested60"} {
		_, err := h.Handle(context.Background(), GetMapStatsQuery{Rooms: []string{"W1N1"}, StatName: statName})
		require.Error(t, err, statName)
		assert.True(t, shared.IsInvalidParams(err), statName)
	}
}

func TestGetMapStats_RejectsBadRooms(t *testing.T) {
	h := NewGetMapStatsHandler(newFakeWorld(), newFakeBuckets(), stats.DefaultRegistry())

	_, err := h.Handle(context.Background(), GetMapStatsQuery{Rooms: nil, StatName: "energyHarvested8"})
	assert.True(t, shared.IsInvalidParams(err))

	_, err = h.Handle(context.Background(), GetMapStatsQuery{Rooms: []string{"downtown"}, StatName: "energyHarvested8"})
	assert.ErrorIs(t, err, shared.ErrInvalidRoom)
}

func TestGetRoomOverview_OwnerSeriesAndMaxima(t *testing.T) {
	registry := stats.DefaultRegistry()
	g, _ := registry.ByMinutes(8)

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	idx := g.BucketIndex(now)

	w := newFakeWorld()
	w.rooms["W1N1"] = world.RoomState{Room: "W1N1", Owner: "alice", Level: 6}
	w.users["alice"] = world.UserInfo{ID: "alice", Username: "Alice"}

	buckets := newFakeBuckets()
	buckets.add(g, idx, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 80})
	buckets.add(g, idx-3, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 20})

	records := &fakeRecords{records: []stats.MaxRecord{
		{Granularity: g, BucketIndex: idx, Metrics: stats.Metrics{stats.MetricEnergyHarvested: 300}},
		{Granularity: g, BucketIndex: idx - 1, Metrics: stats.Metrics{stats.MetricEnergyHarvested: 450}},
	}}

	h := NewGetRoomOverviewHandler(w, buckets, records, registry).WithClock(func() time.Time { return now })

	result, err := h.Handle(context.Background(), GetRoomOverviewQuery{Room: "W1N1", Interval: 8})
	require.NoError(t, err)

	require.NotNil(t, result.Owner)
	assert.Equal(t, "Alice", result.Owner.Username)
	assert.Equal(t, 6, result.Owner.Level)

	series := result.Series["energyHarvested"]
	require.Len(t, series, 8)
	// Oldest to newest, zero-filled gaps.
	assert.Equal(t, int64(0), series[0].Value)
	assert.Equal(t, int64(20), series[4].Value)
	assert.Equal(t, int64(80), series[7].Value)
	assert.Equal(t, (idx+1)*g.Interval.Milliseconds(), series[7].EndTime)

	assert.Equal(t, int64(450), result.Maxima["energyHarvested"])
	assert.Equal(t, int64(0), result.Maxima["powerProcessed"])
}

func TestGetRoomOverview_UnownedRoom(t *testing.T) {
	registry := stats.DefaultRegistry()
	w := newFakeWorld()
	w.rooms["W5N5"] = world.RoomState{Room: "W5N5"}

	h := NewGetRoomOverviewHandler(w, newFakeBuckets(), &fakeRecords{}, registry)

	result, err := h.Handle(context.Background(), GetRoomOverviewQuery{Room: "W5N5", Interval: 180})
	require.NoError(t, err)
	assert.Nil(t, result.Owner)
	assert.Empty(t, result.Series)
}

func TestGetRoomOverview_RoomNotFound(t *testing.T) {
	h := NewGetRoomOverviewHandler(newFakeWorld(), newFakeBuckets(), &fakeRecords{}, stats.DefaultRegistry())

	_, err := h.Handle(context.Background(), GetRoomOverviewQuery{Room: "W5N5", Interval: 8})
	assert.ErrorIs(t, err, shared.ErrRoomNotFound)
}
