package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

func TestGetUserStats_SumsWindowAcrossRooms(t *testing.T) {
	registry := stats.DefaultRegistry()
	g, _ := registry.ByMinutes(8)

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	idx := g.BucketIndex(now)

	buckets := newFakeBuckets()
	buckets.add(g, idx, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 100})
	buckets.add(g, idx-1, "alice", "W2N2", stats.Metrics{stats.MetricEnergyHarvested: 40, stats.MetricCreepsProduced: 3})
	// Outside the 8-bucket window.
	buckets.add(g, idx-8, "alice", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 999})
	// Someone else's bucket.
	buckets.add(g, idx, "bob", "W1N1", stats.Metrics{stats.MetricEnergyHarvested: 777})

	h := NewGetUserStatsHandler(buckets, registry).WithClock(func() time.Time { return now })

	result, err := h.Handle(context.Background(), GetUserStatsQuery{User: "alice", Interval: 8})
	require.NoError(t, err)

	assert.Equal(t, int64(140), result.Totals["energyHarvested"])
	assert.Equal(t, int64(3), result.Totals["creepsProduced"])
	// Metrics with no accumulation are present as zeros.
	assert.Equal(t, int64(0), result.Totals["powerProcessed"])
	assert.Len(t, result.Totals, 7)
}

func TestGetUserStats_RejectsUnknownInterval(t *testing.T) {
	h := NewGetUserStatsHandler(newFakeBuckets(), stats.DefaultRegistry())

	_, err := h.Handle(context.Background(), GetUserStatsQuery{User: "alice", Interval: 60})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownGranularity)

	_, err = h.Handle(context.Background(), GetUserStatsQuery{User: "", Interval: 8})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidUser)
}
