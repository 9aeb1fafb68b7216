package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/domain/notification"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, title, body string) error {
	args := m.Called(ctx, title, body)
	return args.Error(0)
}

// stepClock is a settable clock safe for concurrent ticks.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func newTestTracker(t *testing.T, now time.Time, d notification.Dispatcher) (*TrackerService, *stepClock, *Snapshot) {
	t.Helper()
	epoch, err := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	require.NoError(t, err)
	clock := &stepClock{now: now}
	snap := &Snapshot{}
	return NewTrackerService(epoch, clock, d, snap, "Another hour together", time.Second, testLogger()), clock, snap
}

func TestTrackerService_EndToEndFirstHour(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, "Another hour together", mock.MatchedBy(func(body string) bool {
		return body == "1 hours since 25 Jan 2025 20:30 (0 months, 1 hours, 0 minutes)"
	})).Return(nil).Once()

	tracker, clock, snap := newTestTracker(t, epoch, d)

	first := tracker.Tick(context.Background())
	assert.False(t, first.Crossed)
	assert.True(t, first.Reading.Breakdown.IsZero())

	clock.Set(time.Date(2025, 1, 25, 21, 30, 0, 0, time.FixedZone("", 3*60*60)))
	second := tracker.Tick(context.Background())
	assert.True(t, second.Crossed)
	assert.NoError(t, second.DispatchErr)
	assert.Equal(t, elapsed.Breakdown{Hours: 1}, second.Reading.Breakdown)

	latest, ok := snap.Latest()
	require.True(t, ok)
	assert.Equal(t, second.Reading, latest)
	d.AssertExpectations(t)
}

func TestTrackerService_DispatchesOncePerNewBucket(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tracker, clock, _ := newTestTracker(t, epoch, d)
	for _, bucket := range []int64{5, 5, 5, 6, 6, 7, 7, 7, 9} {
		clock.Set(epoch.Add(time.Duration(bucket)*time.Hour + 17*time.Minute))
		tracker.Tick(context.Background())
	}
	d.AssertNumberOfCalls(t, "Dispatch", 3)

	last, known := tracker.LastNotifiedHour()
	assert.True(t, known)
	assert.Equal(t, int64(9), last)
}

func TestTrackerService_FailedDispatchStillAdvances(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(notification.ErrPermissionDenied).Once()
	d.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	tracker, clock, _ := newTestTracker(t, epoch.Add(time.Hour), d)
	tracker.Tick(context.Background())

	clock.Set(epoch.Add(2 * time.Hour))
	res := tracker.Tick(context.Background())
	assert.True(t, res.Crossed)
	assert.ErrorIs(t, res.DispatchErr, notification.ErrPermissionDenied)

	// Same hour again: no retry.
	res = tracker.Tick(context.Background())
	assert.False(t, res.Crossed)

	clock.Set(epoch.Add(3 * time.Hour))
	res = tracker.Tick(context.Background())
	assert.True(t, res.Crossed)
	assert.NoError(t, res.DispatchErr)
	d.AssertNumberOfCalls(t, "Dispatch", 2)
}

func TestTrackerService_OverlappingTicksDoNotDoubleFire(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	release := make(chan struct{})
	var calls sync.WaitGroup
	var mu sync.Mutex
	count := 0
	d := notification.DispatcherFunc(func(ctx context.Context, title, body string) error {
		mu.Lock()
		count++
		mu.Unlock()
		<-release
		return nil
	})

	tracker, clock, _ := newTestTracker(t, epoch, d)
	tracker.Tick(context.Background())
	clock.Set(epoch.Add(time.Hour))

	for i := 0; i < 8; i++ {
		calls.Add(1)
		go func() {
			defer calls.Done()
			tracker.Tick(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	calls.Wait()

	assert.Equal(t, 1, count)
}

func TestTrackerService_BeforeEpochIsQuiet(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	d := &mockDispatcher{}

	tracker, clock, _ := newTestTracker(t, epoch.Add(-90*time.Minute), d)
	res := tracker.Tick(context.Background())
	assert.True(t, res.Reading.Breakdown.IsZero())
	assert.Equal(t, int64(-2), res.Reading.HourBucket)

	clock.Set(epoch.Add(-30 * time.Minute))
	res = tracker.Tick(context.Background())
	assert.True(t, res.Crossed)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackerService_DispatchHonoursTimeout(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	d := notification.DispatcherFunc(func(ctx context.Context, title, body string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	tracker, clock, _ := newTestTracker(t, epoch, d)
	tracker.notifyTimeout = 10 * time.Millisecond
	tracker.Tick(context.Background())
	clock.Set(epoch.Add(time.Hour))

	res := tracker.Tick(context.Background())
	assert.True(t, errors.Is(res.DispatchErr, context.DeadlineExceeded))
}

func TestLatestReader_PrefersPublishedReading(t *testing.T) {
	epoch, _ := elapsed.ParseEpoch(elapsed.DefaultEpoch)
	tracker, clock, snapshot := newTestTracker(t, epoch.Add(90*time.Minute), &mockDispatcher{})
	reader := LatestReader{Snapshot: snapshot, Tracker: tracker}

	fresh := reader.Read()
	assert.Equal(t, 1, fresh.Breakdown.Hours)
	assert.Equal(t, 30, fresh.Breakdown.Minutes)

	tracker.Tick(context.Background())
	clock.Set(epoch.Add(3 * time.Hour))

	published := reader.Read()
	assert.Equal(t, 1, published.Breakdown.Hours, "reads the published reading, not the clock")
}
