package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/pkg/logger"
)

// fakeEventLog records appended batches in memory.
type fakeEventLog struct {
	mu      sync.Mutex
	batches [][]stats.RawStatEvent
	fail    bool
}

func (f *fakeEventLog) AppendBatch(_ context.Context, events []stats.RawStatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("storage down")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakeEventLog) ListAll(context.Context) ([]stats.RawStatEvent, error) { return nil, nil }
func (f *fakeEventLog) PruneThrough(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeEventLog) Clear(context.Context) error { return nil }

func (f *fakeEventLog) events() []stats.RawStatEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []stats.RawStatEvent
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func testLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.LevelError
	return logger.New(opts)
}

func TestAccumulator_FlushEmptyIsNoop(t *testing.T) {
	log := &fakeEventLog{}
	acc := New(log, testLogger())

	n, err := acc.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, log.batches)
}

func TestAccumulator_CoalescesIncrements(t *testing.T) {
	log := &fakeEventLog{}
	at := time.UnixMilli(1_700_000_000_000)
	acc := New(log, testLogger(), WithClock(func() time.Time { return at }))

	acc.Increment("W1N1", "u1", stats.MetricEnergyHarvested, 100)
	acc.Increment("W1N1", "u1", stats.MetricEnergyHarvested, 40)
	acc.Increment("W1N1", "u2", stats.MetricEnergyControl, 7)
	acc.Increment("W1N1", "u2", stats.MetricCreepsLost, 0)

	n, err := acc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := log.events()
	require.Len(t, events, 2)

	byUser := make(map[shared.UserID]stats.RawStatEvent)
	for _, ev := range events {
		byUser[ev.User] = ev
		assert.Equal(t, at, ev.EndTime)
	}
	assert.Equal(t, int64(140), byUser["u1"].Metrics[stats.MetricEnergyHarvested])
	assert.Equal(t, int64(7), byUser["u2"].Metrics[stats.MetricEnergyControl])

	// Second flush has nothing new.
	n, err = acc.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAccumulator_FailedFlushKeepsCounters(t *testing.T) {
	log := &fakeEventLog{fail: true}
	acc := New(log, testLogger())

	acc.Increment("W1N1", "u1", stats.MetricEnergyCreeps, 55)

	_, err := acc.Flush(context.Background())
	require.Error(t, err)

	// Counters survive the failure and an increment during the outage
	// merges with them.
	acc.Increment("W1N1", "u1", stats.MetricEnergyCreeps, 5)

	log.mu.Lock()
	log.fail = false
	log.mu.Unlock()

	n, err := acc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(60), log.events()[0].Metrics[stats.MetricEnergyCreeps])
}

func TestAccumulator_ConcurrentIncrements(t *testing.T) {
	log := &fakeEventLog{}
	acc := New(log, testLogger())

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				acc.Increment("W1N1", "u1", stats.MetricEnergyHarvested, 1)
			}
		}()
	}

	// Flush concurrently with the writers; whatever lands after the last
	// flush is picked up by the final one.
	for i := 0; i < 10; i++ {
		_, err := acc.Flush(context.Background())
		require.NoError(t, err)
	}
	wg.Wait()
	_, err := acc.Flush(context.Background())
	require.NoError(t, err)

	var total int64
	for _, ev := range log.events() {
		total += ev.Metrics[stats.MetricEnergyHarvested]
	}
	assert.Equal(t, int64(workers*perWorker), total)
}
