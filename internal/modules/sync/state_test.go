package sync

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadedclan/killboard/internal/database"
)

func newTestState(t *testing.T) *StateRepository {
	t.Helper()
	db, err := database.New(t.TempDir() + "/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := NewStateRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, r.Init())
	return r
}

func TestStateLastSyncRoundTrip(t *testing.T) {
	r := newTestState(t)

	last, err := r.LastSync()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, r.SetLastSync("2026-02-06T12:00:00Z"))
	last, err = r.LastSync()
	require.NoError(t, err)
	assert.Equal(t, "2026-02-06T12:00:00Z", last)
}

func TestStateSetLastSyncClearsError(t *testing.T) {
	r := newTestState(t)

	require.NoError(t, r.RecordError("upstream down"))
	require.NoError(t, r.SetLastSync("2026-02-06T12:00:00Z"))

	alert, err := r.Alert()
	require.NoError(t, err)
	assert.Empty(t, alert.Message)
	assert.False(t, alert.ShouldNotify())
}

func TestStateRecordErrorBounded(t *testing.T) {
	r := newTestState(t)

	long := make([]byte, maxErrorLen+500)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, r.RecordError(string(long)))

	alert, err := r.Alert()
	require.NoError(t, err)
	assert.Len(t, alert.Message, maxErrorLen)
}

func TestStateConsumeAlertAtMostOnce(t *testing.T) {
	r := newTestState(t)
	clock := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	// Clean state delivers nothing.
	alert, err := r.ConsumeAlert()
	require.NoError(t, err)
	assert.Nil(t, alert)

	require.NoError(t, r.RecordError("roster fetch failed"))

	// First consume delivers the occurrence.
	alert, err = r.ConsumeAlert()
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "roster fetch failed", alert.Message)
	assert.Equal(t, clock.Unix(), alert.OccurredAt)

	// Repeat polls get nothing until a new occurrence.
	alert, err = r.ConsumeAlert()
	require.NoError(t, err)
	assert.Nil(t, alert)

	// A later failure re-arms delivery, exactly once again.
	clock = clock.Add(time.Minute)
	require.NoError(t, r.RecordError("upstream 503"))

	alert, err = r.ConsumeAlert()
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "upstream 503", alert.Message)

	alert, err = r.ConsumeAlert()
	require.NoError(t, err)
	assert.Nil(t, alert)
}
