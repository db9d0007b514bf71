package zuper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTime is a manual clock whose Sleep advances the clock instead of blocking.
type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeTime) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func TestThrottle_BurstWithinBudgetDoesNotWait(t *testing.T) {
	clock := newFakeTime()
	throttle := NewThrottle(5, time.Minute, clock.Now, clock.Sleep)

	for i := 0; i < 5; i++ {
		waited, err := throttle.Acquire(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	assert.Empty(t, clock.Slept())
	assert.Equal(t, 0, throttle.Remaining())
}

func TestThrottle_BurstOverBudgetDelays(t *testing.T) {
	clock := newFakeTime()
	throttle := NewThrottle(3, time.Minute, clock.Now, clock.Sleep)
	start := clock.Now()

	for i := 0; i < 7; i++ {
		_, err := throttle.Acquire(context.Background())
		require.NoError(t, err)
	}

	// 7 requests at 3 per minute need two window resets.
	assert.Equal(t, 2*time.Minute, clock.Now().Sub(start))
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, clock.Slept())
	assert.Equal(t, 2*time.Minute, throttle.TotalWaited())
}

func TestThrottle_WaitsOnlyForRestOfWindow(t *testing.T) {
	clock := newFakeTime()
	throttle := NewThrottle(2, time.Minute, clock.Now, clock.Sleep)

	_, _ = throttle.Acquire(context.Background())
	clock.Advance(20 * time.Second)
	_, _ = throttle.Acquire(context.Background())

	waited, err := throttle.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, waited)
}

func TestThrottle_WindowExpiryResetsCounter(t *testing.T) {
	clock := newFakeTime()
	throttle := NewThrottle(2, time.Minute, clock.Now, clock.Sleep)

	_, _ = throttle.Acquire(context.Background())
	_, _ = throttle.Acquire(context.Background())
	clock.Advance(61 * time.Second)

	waited, err := throttle.Acquire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)
	assert.Equal(t, 1, throttle.Remaining())
}

func TestThrottle_SleepErrorPropagates(t *testing.T) {
	clock := newFakeTime()
	sleepErr := errors.New("shutting down")
	throttle := NewThrottle(1, time.Minute, clock.Now, func(context.Context, time.Duration) error {
		return sleepErr
	})

	_, err := throttle.Acquire(context.Background())
	require.NoError(t, err)
	_, err = throttle.Acquire(context.Background())
	assert.ErrorIs(t, err, sleepErr)
}

func TestContextSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, contextSleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, contextSleep(context.Background(), 0))
}
