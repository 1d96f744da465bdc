package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
)

func TestListSeasons_SingleSeasonIsPadded(t *testing.T) {
	seasons := &fakeSeasons{seasons: []leaderboard.Season{
		{ID: "2025-12", Name: "December 2025", Date: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}}
	h := NewListSeasonsHandler(seasons)

	result, err := h.Handle(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Seasons, 2)

	assert.Equal(t, "2025-12", result.Seasons[0].ID)
	// The synthetic entry is the following month, with year rollover.
	assert.Equal(t, "2026-01", result.Seasons[1].ID)
	assert.Equal(t, "January 2026", result.Seasons[1].Name)
}

func TestListSeasons_MultipleSeasonsUnpadded(t *testing.T) {
	seasons := &fakeSeasons{seasons: []leaderboard.Season{
		{ID: "2025-02", Name: "February 2025"},
		{ID: "2025-03", Name: "March 2025"},
	}}
	h := NewListSeasonsHandler(seasons)

	result, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Seasons, 2)
}

func TestListSeasons_Empty(t *testing.T) {
	h := NewListSeasonsHandler(&fakeSeasons{})

	result, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Seasons)
}
