package zuper

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// contextSleep is the production SleepFunc.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Throttle enforces a request budget per fixed window. When the budget is
// used up, Acquire blocks until the window ends and then starts a new one.
type Throttle struct {
	budget int
	window time.Duration
	now    Clock
	sleep  SleepFunc

	mu          sync.Mutex
	windowStart time.Time
	count       int
	waited      time.Duration
}

// NewThrottle creates a Throttle allowing budget requests per window.
// Nil now/sleep use the wall clock.
func NewThrottle(budget int, window time.Duration, now Clock, sleep SleepFunc) *Throttle {
	if budget < 1 {
		budget = 1
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = contextSleep
	}
	return &Throttle{budget: budget, window: window, now: now, sleep: sleep}
}

// Acquire reserves one request slot, blocking if the window's budget is spent.
// It returns how long the caller was blocked.
func (t *Throttle) Acquire(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.window {
		t.windowStart = now
		t.count = 0
	}

	var waited time.Duration
	if t.count >= t.budget {
		wait := t.window - now.Sub(t.windowStart)
		if wait > 0 {
			if err := t.sleep(ctx, wait); err != nil {
				return 0, err
			}
			waited = wait
			t.waited += wait
		}
		t.windowStart = t.now()
		t.count = 0
	}

	t.count++
	return waited, nil
}

// Remaining returns how many requests are left in the current window.
func (t *Throttle) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.windowStart.IsZero() || t.now().Sub(t.windowStart) >= t.window {
		return t.budget
	}
	return t.budget - t.count
}

// TotalWaited returns the cumulative time Acquire has blocked.
func (t *Throttle) TotalWaited() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waited
}
