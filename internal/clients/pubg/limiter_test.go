package pubg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
	return nil
}

func newTestLimiter(rpm int) (*minIntervalLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_000_000, 0)}
	l := newMinIntervalLimiter(rpm)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestLimiterSpacesSequentialCalls(t *testing.T) {
	l, clock := newTestLimiter(10) // 6s interval

	starts := make([]time.Time, 0, 5)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background()))
		starts = append(starts, clock.now)
	}

	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 6*time.Second, "calls %d and %d too close", i-1, i)
	}
}

func TestLimiterFirstCallPassesImmediately(t *testing.T) {
	l, clock := newTestLimiter(10)

	require.NoError(t, l.Wait(context.Background()))
	assert.Empty(t, clock.slept)
}

func TestLimiterSlotAdvancesEvenWhenIdle(t *testing.T) {
	l, clock := newTestLimiter(10)

	require.NoError(t, l.Wait(context.Background()))

	// Idle past several slots: the next call must not replay the missed
	// budget, only respect the floor from its own slot.
	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, l.Wait(context.Background()))
	assert.Empty(t, clock.slept, "no sleep expected after a long idle period")

	// An immediate follow-up waits a full interval.
	require.NoError(t, l.Wait(context.Background()))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 6*time.Second, clock.slept[0])
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := newMinIntervalLimiter(1) // 60s interval, real clock

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
