package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/pkg/models"
)

// fakeLister counts calls and optionally blocks each one until released
type fakeLister struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
	fail    func(n int32) error
}

func (f *fakeLister) ListJobs(ctx context.Context) ([]models.Job, error) {
	n := f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return nil, err
		}
	}
	return []models.Job{{ID: uint(n), URL: "https://example.com", Status: models.JobStatusPending}}, nil
}

type busyRecorder struct {
	mu      sync.Mutex
	changes []bool
	at      []time.Time
}

func (b *busyRecorder) SetBusy(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, busy)
	b.at = append(b.at, time.Now())
}

func (b *busyRecorder) snapshot() ([]bool, []time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.changes...), append([]time.Time(nil), b.at...)
}

type listenerFunc func(ctx context.Context, jobs []models.Job)

func (f listenerFunc) OnSnapshot(ctx context.Context, jobs []models.Job) { f(ctx, jobs) }

func TestTriggerNow_Idle(t *testing.T) {
	lister := &fakeLister{}
	store := snapshot.NewStore(nil)

	var seen []models.Job
	s := NewScheduler(lister, store, WithMinBusy(0), WithListener(listenerFunc(func(_ context.Context, jobs []models.Job) {
		seen = jobs
	})))

	require.NoError(t, s.TriggerNow(context.Background()))
	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Len(t, store.Jobs(), 1)
	assert.Equal(t, store.Jobs(), seen)
	assert.False(t, s.InFlight())
}

func TestTriggerNow_CoalescesWhileInFlight(t *testing.T) {
	lister := &fakeLister{gate: make(chan struct{}), entered: make(chan struct{}, 10)}
	store := snapshot.NewStore(nil)
	s := NewScheduler(lister, store, WithMinBusy(0))

	done := make(chan error, 1)
	go func() { done <- s.TriggerNow(context.Background()) }()
	<-lister.entered
	require.True(t, s.InFlight())

	// Both return at once and fold into one follow-up fetch
	require.NoError(t, s.TriggerNow(context.Background()))
	require.NoError(t, s.TriggerNow(context.Background()))

	lister.gate <- struct{}{}
	<-lister.entered
	lister.gate <- struct{}{}

	require.NoError(t, <-done)
	assert.Equal(t, int32(2), lister.calls.Load())
	assert.False(t, s.InFlight())

	jobs := store.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, uint(2), jobs[0].ID, "the follow-up fetch wins")
}

func TestStart_SkipsTicksWhileInFlight(t *testing.T) {
	lister := &fakeLister{gate: make(chan struct{}), entered: make(chan struct{}, 100)}
	s := NewScheduler(lister, snapshot.NewStore(nil), WithMinBusy(0))

	require.NoError(t, s.Start(context.Background(), 5*time.Millisecond))
	<-lister.entered

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), lister.calls.Load(), "ticks during a fetch must be skipped")

	close(lister.gate)
	assert.Eventually(t, func() bool { return lister.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestStart_SurvivesFailures(t *testing.T) {
	lister := &fakeLister{fail: func(n int32) error {
		if n <= 2 {
			return errors.New("connection refused")
		}
		return nil
	}}
	store := snapshot.NewStore(nil)

	var failures atomic.Int32
	s := NewScheduler(lister, store, WithMinBusy(0), WithErrorHandler(func(err error) {
		failures.Add(1)
	}))

	require.NoError(t, s.Start(context.Background(), 10*time.Millisecond))
	assert.Eventually(t, func() bool { return store.Version() > 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(2), failures.Load())
}

func TestTriggerNow_ReturnsFetchError(t *testing.T) {
	lister := &fakeLister{fail: func(int32) error { return errors.New("boom") }}
	store := snapshot.NewStore(nil)
	s := NewScheduler(lister, store, WithMinBusy(0))

	err := s.TriggerNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, uint64(0), store.Version(), "a failed fetch leaves the snapshot alone")
}

func TestBusyIndicator_MinimumDuration(t *testing.T) {
	busy := &busyRecorder{}
	s := NewScheduler(&fakeLister{}, snapshot.NewStore(nil), WithBusyIndicator(busy), WithMinBusy(50*time.Millisecond))

	require.NoError(t, s.TriggerNow(context.Background()))

	changes, _ := busy.snapshot()
	assert.Equal(t, []bool{true}, changes, "indicator stays on after a fast fetch")

	assert.Eventually(t, func() bool {
		changes, _ := busy.snapshot()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)

	changes, at := busy.snapshot()
	assert.Equal(t, []bool{true, false}, changes)
	assert.GreaterOrEqual(t, at[1].Sub(at[0]), 50*time.Millisecond)
}

func TestStop(t *testing.T) {
	s := NewScheduler(&fakeLister{}, snapshot.NewStore(nil), WithMinBusy(0))
	require.NoError(t, s.Start(context.Background(), time.Hour))
	assert.ErrorIs(t, s.Start(context.Background(), time.Hour), ErrAlreadyRunning)

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.TriggerNow(context.Background()), ErrStopped)
	assert.ErrorIs(t, s.Start(context.Background(), time.Hour), ErrStopped)
}
