package locking

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadedclan/killboard/internal/database"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := database.New(t.TempDir() + "/lock.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := NewManager(db.Conn(), zerolog.Nop())
	require.NoError(t, m.Init())
	return m
}

func TestAcquireAndRelease(t *testing.T) {
	m := newTestManager(t)

	lease, err := m.Acquire("sync_weekly_kills", time.Minute)
	require.NoError(t, err)

	st, err := m.Status("sync_weekly_kills")
	require.NoError(t, err)
	assert.True(t, st.Held)
	assert.Equal(t, lease.HolderID(), st.LockedBy)

	require.NoError(t, lease.Release())

	st, err = m.Status("sync_weekly_kills")
	require.NoError(t, err)
	assert.False(t, st.Held)
}

func TestSecondAcquireIsContention(t *testing.T) {
	m := newTestManager(t)

	lease, err := m.Acquire("sync_weekly_kills", time.Minute)
	require.NoError(t, err)
	defer lease.Release()

	_, err = m.Acquire("sync_weekly_kills", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestConcurrentAcquireExactlyOneWinner(t *testing.T) {
	m := newTestManager(t)

	const runners = 8
	results := make(chan error, runners)
	for i := 0; i < runners; i++ {
		go func() {
			_, err := m.Acquire("sync_weekly_kills", time.Minute)
			results <- err
		}()
	}

	wins, contentions := 0, 0
	for i := 0; i < runners; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrLockHeld):
			contentions++
		default:
			t.Fatalf("unexpected acquire error: %v", err)
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, runners-1, contentions)
}

func TestExpiredLockIsReacquirable(t *testing.T) {
	m := newTestManager(t)

	// First holder acquires in the past, so its TTL has already lapsed.
	past := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return past }
	stale, err := m.Acquire("sync_weekly_kills", time.Minute)
	require.NoError(t, err)

	m.now = time.Now
	fresh, err := m.Acquire("sync_weekly_kills", time.Minute)
	require.NoError(t, err, "expired lease must be reacquirable without release")

	// The stale holder's release must not free the new holder's lease.
	require.NoError(t, stale.Release())

	st, err := m.Status("sync_weekly_kills")
	require.NoError(t, err)
	assert.True(t, st.Held)
	assert.Equal(t, fresh.HolderID(), st.LockedBy)
}

func TestIndependentJobNames(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Acquire("job_a", time.Minute)
	require.NoError(t, err)
	defer a.Release()

	b, err := m.Acquire("job_b", time.Minute)
	require.NoError(t, err)
	defer b.Release()
}
