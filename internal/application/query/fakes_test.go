package query

import (
	"context"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
)

// In-memory fakes for query handler tests. Only the read paths carry
// real behavior; write methods exist to satisfy the interfaces.

type fakeEntries struct {
	entries []leaderboard.Entry
	listErr error
}

func (f *fakeEntries) ListSeason(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	for _, e := range f.entries {
		if e.Mode == mode && e.Season == season {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) ListPage(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, error) {
	if f.listErr != nil {
		return leaderboard.Page{}, f.listErr
	}
	all, _ := f.ListSeason(ctx, mode, season)
	page := leaderboard.Page{Total: len(all)}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page.Entries = append(page.Entries, all[i])
	}
	return page, nil
}

func (f *fakeEntries) Find(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, user shared.UserID) (leaderboard.Entry, error) {
	for _, e := range f.entries {
		if e.Mode == mode && e.Season == season && e.User == user {
			return e, nil
		}
	}
	return leaderboard.Entry{}, shared.ErrEntryNotFound
}

func (f *fakeEntries) FindAllSeasons(ctx context.Context, mode leaderboard.ScoringMode, user shared.UserID) ([]leaderboard.Entry, error) {
	var out []leaderboard.Entry
	for _, e := range f.entries {
		if e.Mode == mode && e.User == user {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntries) ApplyWritePlan(ctx context.Context, mode leaderboard.ScoringMode, plan leaderboard.WritePlan) error {
	return nil
}

func (f *fakeEntries) WipeAll(ctx context.Context) error {
	f.entries = nil
	return nil
}

type fakeSeasonState struct {
	active leaderboard.SeasonID
}

func (f *fakeSeasonState) Active(ctx context.Context) (leaderboard.SeasonID, error) {
	if f.active == "" {
		return "", shared.ErrNoActiveSeason
	}
	return f.active, nil
}

func (f *fakeSeasonState) SetActive(ctx context.Context, id leaderboard.SeasonID) error {
	f.active = id
	return nil
}

type fakeSeasons struct {
	seasons []leaderboard.Season
}

func (f *fakeSeasons) Insert(ctx context.Context, season leaderboard.Season) error {
	f.seasons = append(f.seasons, season)
	return nil
}

func (f *fakeSeasons) Find(ctx context.Context, id leaderboard.SeasonID) (leaderboard.Season, error) {
	for _, s := range f.seasons {
		if s.ID == id {
			return s, nil
		}
	}
	return leaderboard.Season{}, shared.ErrSeasonNotFound
}

func (f *fakeSeasons) List(ctx context.Context) ([]leaderboard.Season, error) {
	return append([]leaderboard.Season(nil), f.seasons...), nil
}

type cacheKey struct {
	mode   leaderboard.ScoringMode
	season leaderboard.SeasonID
	limit  int
	offset int
}

type fakeCache struct {
	pages   map[cacheKey]leaderboard.Page
	hits    int
	stores  int
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: map[cacheKey]leaderboard.Page{}}
}

func (f *fakeCache) GetTop(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, error) {
	page, ok := f.pages[cacheKey{mode, season, limit, offset}]
	if !ok {
		return leaderboard.Page{}, shared.ErrNotFound
	}
	f.hits++
	return page, nil
}

func (f *fakeCache) SetTop(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int, page leaderboard.Page, ttl time.Duration) error {
	f.pages[cacheKey{mode, season, limit, offset}] = page
	f.stores++
	f.lastTTL = ttl
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID) error {
	for key := range f.pages {
		if key.mode == mode && key.season == season {
			delete(f.pages, key)
		}
	}
	return nil
}

type fakeWorld struct {
	rooms map[shared.RoomID]world.RoomState
	users map[shared.UserID]world.UserInfo
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		rooms: map[shared.RoomID]world.RoomState{},
		users: map[shared.UserID]world.UserInfo{},
	}
}

func (f *fakeWorld) FindRoom(ctx context.Context, room shared.RoomID) (world.RoomState, error) {
	state, ok := f.rooms[room]
	if !ok {
		return world.RoomState{}, shared.ErrRoomNotFound
	}
	return state, nil
}

func (f *fakeWorld) FindRooms(ctx context.Context, rooms []shared.RoomID) (map[shared.RoomID]world.RoomState, error) {
	out := map[shared.RoomID]world.RoomState{}
	for _, room := range rooms {
		if state, ok := f.rooms[room]; ok {
			out[room] = state
		}
	}
	return out, nil
}

func (f *fakeWorld) FindUsers(ctx context.Context, users []shared.UserID) (map[shared.UserID]world.UserInfo, error) {
	out := map[shared.UserID]world.UserInfo{}
	for _, user := range users {
		if info, ok := f.users[user]; ok {
			out[user] = info
		}
	}
	return out, nil
}

type fakeBuckets struct {
	buckets map[int][]stats.Bucket
}

func newFakeBuckets() *fakeBuckets {
	return &fakeBuckets{buckets: map[int][]stats.Bucket{}}
}

func (f *fakeBuckets) add(g stats.Granularity, index int64, user shared.UserID, room shared.RoomID, m stats.Metrics) {
	f.buckets[g.Minutes()] = append(f.buckets[g.Minutes()], stats.Bucket{
		Granularity: g,
		BucketIndex: index,
		User:        user,
		Room:        room,
		Metrics:     m.Clone(),
	})
}

func (f *fakeBuckets) FindByKeys(ctx context.Context, g stats.Granularity, keys []stats.BucketKey) (map[stats.BucketKey]stats.Metrics, error) {
	out := map[stats.BucketKey]stats.Metrics{}
	for _, b := range f.buckets[g.Minutes()] {
		for _, key := range keys {
			if b.Key() == key {
				out[key] = b.Metrics.Clone()
			}
		}
	}
	return out, nil
}

func (f *fakeBuckets) ApplyMergePlan(ctx context.Context, g stats.Granularity, plan stats.MergePlan) error {
	return nil
}

func (f *fakeBuckets) SumUserWindow(ctx context.Context, g stats.Granularity, user shared.UserID, from, to int64) (stats.Metrics, error) {
	sums := stats.Metrics{}
	for _, b := range f.buckets[g.Minutes()] {
		if b.User == user && b.BucketIndex >= from && b.BucketIndex <= to {
			sums.Add(b.Metrics)
		}
	}
	return sums, nil
}

func (f *fakeBuckets) UserRoomSeries(ctx context.Context, g stats.Granularity, room shared.RoomID, user shared.UserID, from, to int64) (map[int64]stats.Metrics, error) {
	out := map[int64]stats.Metrics{}
	for _, b := range f.buckets[g.Minutes()] {
		if b.Room == room && b.User == user && b.BucketIndex >= from && b.BucketIndex <= to {
			out[b.BucketIndex] = b.Metrics.Clone()
		}
	}
	return out, nil
}

func (f *fakeBuckets) RoomMetricBreakdown(ctx context.Context, g stats.Granularity, rooms []shared.RoomID, metric stats.MetricName, from, to int64) (map[shared.RoomID]map[shared.UserID]int64, error) {
	wanted := map[shared.RoomID]bool{}
	for _, room := range rooms {
		wanted[room] = true
	}
	out := map[shared.RoomID]map[shared.UserID]int64{}
	for _, b := range f.buckets[g.Minutes()] {
		if !wanted[b.Room] || b.BucketIndex < from || b.BucketIndex > to {
			continue
		}
		v := b.Metrics[metric]
		if v == 0 {
			continue
		}
		if out[b.Room] == nil {
			out[b.Room] = map[shared.UserID]int64{}
		}
		out[b.Room][b.User] += v
	}
	return out, nil
}

func (f *fakeBuckets) Reset(ctx context.Context, g stats.Granularity) error {
	delete(f.buckets, g.Minutes())
	return nil
}

type fakeRecords struct {
	records []stats.MaxRecord
}

func (f *fakeRecords) RaiseMaxima(ctx context.Context, records []stats.MaxRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeRecords) ListWindow(ctx context.Context, g stats.Granularity, from, to int64) ([]stats.MaxRecord, error) {
	var out []stats.MaxRecord
	for _, r := range f.records {
		if r.Granularity.Minutes() == g.Minutes() && r.BucketIndex >= from && r.BucketIndex <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Clear(ctx context.Context) error {
	f.records = nil
	return nil
}
