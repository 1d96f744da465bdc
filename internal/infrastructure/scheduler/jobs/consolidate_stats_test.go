package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// FAKES
// ─────────────────────────────────────────────────────────────────────────────

type fakeRawEvents struct {
	mu     sync.Mutex
	events []stats.RawStatEvent
	pruned int64
}

func (f *fakeRawEvents) AppendBatch(_ context.Context, events []stats.RawStatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeRawEvents) ListAll(_ context.Context) ([]stats.RawStatEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stats.RawStatEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeRawEvents) PruneThrough(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.events[:0]
	var removed int64
	for _, ev := range f.events {
		if ev.EndTime.After(cutoff) {
			kept = append(kept, ev)
		} else {
			removed++
		}
	}
	f.events = kept
	f.pruned += removed
	return removed, nil
}

func (f *fakeRawEvents) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	return nil
}

type fakeBuckets struct {
	mu      sync.Mutex
	store   map[int]map[stats.BucketKey]stats.Metrics
	failFor map[int]error
}

func newFakeBuckets() *fakeBuckets {
	return &fakeBuckets{
		store:   make(map[int]map[stats.BucketKey]stats.Metrics),
		failFor: make(map[int]error),
	}
}

func (f *fakeBuckets) granularity(g stats.Granularity) map[stats.BucketKey]stats.Metrics {
	m, ok := f.store[g.Minutes()]
	if !ok {
		m = make(map[stats.BucketKey]stats.Metrics)
		f.store[g.Minutes()] = m
	}
	return m
}

func (f *fakeBuckets) FindByKeys(_ context.Context, g stats.Granularity, keys []stats.BucketKey) (map[stats.BucketKey]stats.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[g.Minutes()]; err != nil {
		return nil, err
	}
	m := f.granularity(g)
	out := make(map[stats.BucketKey]stats.Metrics)
	for _, key := range keys {
		if v, ok := m[key]; ok {
			out[key] = v.Clone()
		}
	}
	return out, nil
}

func (f *fakeBuckets) ApplyMergePlan(_ context.Context, g stats.Granularity, plan stats.MergePlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[g.Minutes()]; err != nil {
		return err
	}
	m := f.granularity(g)
	for _, b := range plan.Inserts {
		m[b.Key()] = b.Metrics.Clone()
	}
	for _, b := range plan.Updates {
		m[b.Key()] = b.Metrics.Clone()
	}
	return nil
}

func (f *fakeBuckets) SumUserWindow(_ context.Context, g stats.Granularity, user shared.UserID, from, to int64) (stats.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := make(stats.Metrics)
	for key, m := range f.granularity(g) {
		if key.User == user && key.BucketIndex >= from && key.BucketIndex <= to {
			sum.Add(m)
		}
	}
	return sum, nil
}

func (f *fakeBuckets) UserRoomSeries(_ context.Context, g stats.Granularity, room shared.RoomID, user shared.UserID, from, to int64) (map[int64]stats.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]stats.Metrics)
	for key, m := range f.granularity(g) {
		if key.Room == room && key.User == user && key.BucketIndex >= from && key.BucketIndex <= to {
			out[key.BucketIndex] = m.Clone()
		}
	}
	return out, nil
}

func (f *fakeBuckets) RoomMetricBreakdown(_ context.Context, g stats.Granularity, rooms []shared.RoomID, metric stats.MetricName, from, to int64) (map[shared.RoomID]map[shared.UserID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[shared.RoomID]bool, len(rooms))
	for _, room := range rooms {
		wanted[room] = true
	}
	out := make(map[shared.RoomID]map[shared.UserID]int64)
	for key, m := range f.granularity(g) {
		if !wanted[key.Room] || key.BucketIndex < from || key.BucketIndex > to {
			continue
		}
		if out[key.Room] == nil {
			out[key.Room] = make(map[shared.UserID]int64)
		}
		out[key.Room][key.User] += m[metric]
	}
	return out, nil
}

func (f *fakeBuckets) Reset(_ context.Context, g stats.Granularity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, g.Minutes())
	return nil
}

type recordKey struct {
	minutes int
	index   int64
}

type fakeRecords struct {
	mu    sync.Mutex
	store map[recordKey]stats.Metrics
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{store: make(map[recordKey]stats.Metrics)}
}

func (f *fakeRecords) RaiseMaxima(_ context.Context, records []stats.MaxRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		key := recordKey{minutes: rec.Granularity.Minutes(), index: rec.BucketIndex}
		current, ok := f.store[key]
		if !ok {
			current = make(stats.Metrics)
			f.store[key] = current
		}
		current.Raise(rec.Metrics)
	}
	return nil
}

func (f *fakeRecords) ListWindow(_ context.Context, g stats.Granularity, from, to int64) ([]stats.MaxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []stats.MaxRecord
	for key, m := range f.store {
		if key.minutes == g.Minutes() && key.index >= from && key.index <= to {
			out = append(out, stats.MaxRecord{Granularity: g, BucketIndex: key.index, Metrics: m.Clone()})
		}
	}
	return out, nil
}

func (f *fakeRecords) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = make(map[recordKey]stats.Metrics)
	return nil
}

type entryKey struct {
	mode   leaderboard.ScoringMode
	season leaderboard.SeasonID
	user   shared.UserID
}

type fakeEntries struct {
	mu    sync.Mutex
	store map[entryKey]leaderboard.Entry
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{store: make(map[entryKey]leaderboard.Entry)}
}

func (f *fakeEntries) ListSeason(_ context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboard.Entry
	for key, e := range f.store {
		if key.mode == mode && key.season == season {
			out = append(out, e)
		}
	}
	// (rank, user) order, matching the SQL implementation.
	for i := 0; i < len(out); i++ {
		for k := i + 1; k < len(out); k++ {
			if out[k].Rank < out[i].Rank || (out[k].Rank == out[i].Rank && out[k].User < out[i].User) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeEntries) ListPage(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, error) {
	all, err := f.ListSeason(ctx, mode, season)
	if err != nil {
		return leaderboard.Page{}, err
	}
	page := leaderboard.Page{Total: len(all)}
	for _, e := range all {
		if e.Rank >= offset && e.Rank < offset+limit {
			page.Entries = append(page.Entries, e)
		}
	}
	return page, nil
}

func (f *fakeEntries) Find(_ context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, user shared.UserID) (leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.store[entryKey{mode: mode, season: season, user: user}]
	if !ok {
		return leaderboard.Entry{}, shared.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeEntries) FindAllSeasons(_ context.Context, mode leaderboard.ScoringMode, user shared.UserID) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboard.Entry
	for key, e := range f.store {
		if key.mode == mode && key.user == user {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) ApplyWritePlan(_ context.Context, mode leaderboard.ScoringMode, plan leaderboard.WritePlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range append(append([]leaderboard.Entry{}, plan.Inserts...), plan.Updates...) {
		f.store[entryKey{mode: mode, season: e.Season, user: e.User}] = e
	}
	return nil
}

func (f *fakeEntries) WipeAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = make(map[entryKey]leaderboard.Entry)
	return nil
}

type fakeSeasonState struct {
	mu     sync.Mutex
	active leaderboard.SeasonID
}

func (f *fakeSeasonState) Active(_ context.Context) (leaderboard.SeasonID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == "" {
		return "", shared.ErrNoActiveSeason
	}
	return f.active, nil
}

func (f *fakeSeasonState) SetActive(_ context.Context, id leaderboard.SeasonID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = id
	return nil
}

type fakeSeasons struct {
	mu    sync.Mutex
	store map[leaderboard.SeasonID]leaderboard.Season
}

func newFakeSeasons() *fakeSeasons {
	return &fakeSeasons{store: make(map[leaderboard.SeasonID]leaderboard.Season)}
}

func (f *fakeSeasons) Insert(_ context.Context, season leaderboard.Season) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.store[season.ID]; ok {
		return shared.ErrAlreadyExists
	}
	f.store[season.ID] = season
	return nil
}

func (f *fakeSeasons) Find(_ context.Context, id leaderboard.SeasonID) (leaderboard.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.store[id]
	if !ok {
		return leaderboard.Season{}, shared.ErrSeasonNotFound
	}
	return s, nil
}

func (f *fakeSeasons) List(_ context.Context) ([]leaderboard.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboard.Season
	for _, s := range f.store {
		out = append(out, s)
	}
	return out, nil
}

type fakeLock struct {
	held bool
}

func (f *fakeLock) TryAcquire(_ context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(_ context.Context) error {
	f.held = false
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func testJob(raw *fakeRawEvents, buckets *fakeBuckets, records *fakeRecords, entries *fakeEntries, state *fakeSeasonState, lock Lock) *ConsolidateStatsJob {
	return NewConsolidateStatsJob(
		raw, buckets, records, entries, state, nil,
		stats.DefaultRegistry(),
		lock, nil,
		DefaultConsolidateStatsConfig(),
	)
}

func event(room, user string, at time.Time, metric stats.MetricName, value int64) stats.RawStatEvent {
	return stats.NewRawStatEvent(
		shared.RoomID(room),
		shared.UserID(user),
		at,
		stats.Metrics{metric: value},
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// CONSOLIDATION TESTS
// ─────────────────────────────────────────────────────────────────────────────

func TestConsolidateStats_MergesAndPrunes(t *testing.T) {
	raw := &fakeRawEvents{}
	buckets := newFakeBuckets()
	records := newFakeRecords()
	entries := newFakeEntries()
	state := &fakeSeasonState{active: "2025-03"}

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at, stats.MetricEnergyHarvested, 100),
		event("W1N1", "user-a", at, stats.MetricEnergyControl, 40),
		event("W2N2", "user-b", at, stats.MetricEnergyControl, 70),
	}))

	job := testJob(raw, buckets, records, entries, state, &fakeLock{})
	require.NoError(t, job.Run(context.Background()))

	// Log drained.
	left, err := raw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Equal(t, int64(3), raw.pruned)

	// Every granularity received the merge.
	for _, g := range stats.DefaultRegistry().All() {
		index := g.BucketIndex(at)
		got, err := buckets.FindByKeys(context.Background(), g, []stats.BucketKey{
			{BucketIndex: index, User: "user-a", Room: "W1N1"},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(100), got[stats.BucketKey{BucketIndex: index, User: "user-a", Room: "W1N1"}][stats.MetricEnergyHarvested])

		recs, err := records.ListWindow(context.Background(), g, index, index)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, int64(100), recs[0].Metrics[stats.MetricEnergyHarvested])
		// The record mixes contributors: max control came from user-b.
		assert.Equal(t, int64(70), recs[0].Metrics[stats.MetricEnergyControl])
	}

	// Leaderboard ranked by energyControl deltas.
	top, err := entries.ListSeason(context.Background(), leaderboard.ModeWorld, "2025-03")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, shared.UserID("user-b"), top[0].User)
	assert.Equal(t, int64(70), top[0].Score)
	assert.Equal(t, 0, top[0].Rank)
	assert.Equal(t, shared.UserID("user-a"), top[1].User)
	assert.Equal(t, 1, top[1].Rank)
}

func TestConsolidateStats_FailedUnitSkipsPrune(t *testing.T) {
	raw := &fakeRawEvents{}
	buckets := newFakeBuckets()
	buckets.failFor[180] = errors.New("table unavailable")
	records := newFakeRecords()
	entries := newFakeEntries()
	state := &fakeSeasonState{active: "2025-03"}

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at, stats.MetricEnergyHarvested, 100),
	}))

	job := testJob(raw, buckets, records, entries, state, &fakeLock{})
	err := job.Run(context.Background())
	require.Error(t, err)

	// The log survives for replay; the healthy granularities still merged.
	left, err := raw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 1)

	g8, _ := stats.DefaultRegistry().ByMinutes(8)
	index := g8.BucketIndex(at)
	got, err := buckets.FindByKeys(context.Background(), g8, []stats.BucketKey{
		{BucketIndex: index, User: "user-a", Room: "W1N1"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestConsolidateStats_NoActiveSeasonSkipsLeaderboard(t *testing.T) {
	raw := &fakeRawEvents{}
	entries := newFakeEntries()

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at, stats.MetricEnergyControl, 50),
	}))

	job := testJob(raw, newFakeBuckets(), newFakeRecords(), entries, &fakeSeasonState{}, &fakeLock{})
	require.NoError(t, job.Run(context.Background()))

	// Buckets merged and log pruned, but no standings were written.
	left, err := raw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Empty(t, entries.store)
}

func TestConsolidateStats_LockHeldElsewhereSkips(t *testing.T) {
	raw := &fakeRawEvents{}

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at, stats.MetricEnergyHarvested, 100),
	}))

	lock := &fakeLock{held: true}
	job := testJob(raw, newFakeBuckets(), newFakeRecords(), newFakeEntries(), &fakeSeasonState{}, lock)
	require.NoError(t, job.Run(context.Background()))

	// Nothing consumed.
	left, err := raw.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestConsolidateStats_EmptyLogIsNoop(t *testing.T) {
	raw := &fakeRawEvents{}
	job := testJob(raw, newFakeBuckets(), newFakeRecords(), newFakeEntries(), &fakeSeasonState{}, &fakeLock{})
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(0), raw.pruned)
}

func TestConsolidateStats_SecondPassAccumulates(t *testing.T) {
	raw := &fakeRawEvents{}
	buckets := newFakeBuckets()
	state := &fakeSeasonState{active: "2025-03"}
	job := testJob(raw, buckets, newFakeRecords(), newFakeEntries(), state, &fakeLock{})

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at, stats.MetricEnergyHarvested, 100),
	}))
	require.NoError(t, job.Run(context.Background()))

	require.NoError(t, raw.AppendBatch(context.Background(), []stats.RawStatEvent{
		event("W1N1", "user-a", at.Add(time.Minute), stats.MetricEnergyHarvested, 50),
	}))
	require.NoError(t, job.Run(context.Background()))

	g8, _ := stats.DefaultRegistry().ByMinutes(8)
	index := g8.BucketIndex(at)
	got, err := buckets.FindByKeys(context.Background(), g8, []stats.BucketKey{
		{BucketIndex: index, User: "user-a", Room: "W1N1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), got[stats.BucketKey{BucketIndex: index, User: "user-a", Room: "W1N1"}][stats.MetricEnergyHarvested])
}

// ─────────────────────────────────────────────────────────────────────────────
// SEASON ROTATION TESTS
// ─────────────────────────────────────────────────────────────────────────────

func TestRotateSeason_CreatesAndActivates(t *testing.T) {
	seasons := newFakeSeasons()
	state := &fakeSeasonState{}

	job := NewRotateSeasonJob(seasons, state, nil).WithClock(func() time.Time {
		return time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	})

	require.NoError(t, job.Run(context.Background()))

	season, err := seasons.Find(context.Background(), "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "March 2025", season.Name)

	active, err := state.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SeasonID("2025-03"), active)
}

func TestRotateSeason_SecondRunSameMonthIsNoop(t *testing.T) {
	seasons := newFakeSeasons()
	state := &fakeSeasonState{}

	job := NewRotateSeasonJob(seasons, state, nil).WithClock(func() time.Time {
		return time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	})

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	all, err := seasons.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRotateSeason_MonthBoundaryMovesPointer(t *testing.T) {
	seasons := newFakeSeasons()
	state := &fakeSeasonState{}

	now := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	job := NewRotateSeasonJob(seasons, state, nil).WithClock(func() time.Time { return now })

	require.NoError(t, job.Run(context.Background()))

	now = time.Date(2025, 4, 1, 0, 30, 0, 0, time.UTC)
	require.NoError(t, job.Run(context.Background()))

	active, err := state.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SeasonID("2025-04"), active)

	all, err := seasons.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
