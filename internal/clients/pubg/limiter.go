package pubg

import (
	"context"
	"sync"
	"time"
)

// minIntervalLimiter spaces request starts at least 60/rpm seconds apart,
// shared across all callers of one client instance.
//
// The next-slot timestamp advances whether or not the caller ultimately uses
// its slot, so a burst of queued callers drains at the rate floor instead of
// catching up all at once. Only the slot computation is a critical section;
// the sleep happens outside it so unrelated requests are never serialized on
// each other's waiting.
type minIntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time

	now   func() time.Time            // injectable clock for tests
	sleep func(context.Context, time.Duration) error
}

func newMinIntervalLimiter(rpm int) *minIntervalLimiter {
	if rpm <= 0 {
		rpm = 10
	}
	return &minIntervalLimiter{
		interval: time.Duration(float64(time.Minute) / float64(rpm)),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until this caller's slot opens, or until ctx is done.
func (l *minIntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	var delay time.Duration
	if now.Before(l.next) {
		delay = l.next.Sub(now)
		l.next = l.next.Add(l.interval)
	} else {
		l.next = now.Add(l.interval)
	}
	l.mu.Unlock()

	if delay > 0 {
		return l.sleep(ctx, delay)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
