package sync

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Keys in the sync_state table.
const (
	keyLastSync          = "weekly_sync_last_utc_z"
	keyLastError         = "weekly_sync_last_error"
	keyLastErrorAt       = "weekly_sync_last_error_at"
	keyLastErrorNotified = "weekly_sync_last_error_notified_at"
)

// Recorded errors are bounded so a runaway stack trace cannot bloat the row.
const maxErrorLen = 1000

const stateSchema = `
CREATE TABLE IF NOT EXISTS sync_state (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

// StateRepository is the generic key-value sync state store, plus the typed
// helpers for the sync timestamp and the alert bookkeeping.
type StateRepository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewStateRepository creates a sync state repository.
func NewStateRepository(db *sql.DB, log zerolog.Logger) *StateRepository {
	return &StateRepository{
		db:  db,
		log: log.With().Str("repo", "sync_state").Logger(),
		now: time.Now,
	}
}

// Init creates the sync_state table if missing.
func (r *StateRepository) Init() error {
	if _, err := r.db.Exec(stateSchema); err != nil {
		return fmt.Errorf("failed to create sync_state table: %w", err)
	}
	return nil
}

// Set upserts one state row.
func (r *StateRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  value      = excluded.value,
		  updated_at = excluded.updated_at
	`, key, value, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set sync state %q: %w", key, err)
	}
	return nil
}

// Get returns a state value, empty when the key was never written.
func (r *StateRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get sync state %q: %w", key, err)
	}
	return value, nil
}

// SetLastSync records a successful run and clears the error state, so stale
// failures do not keep alerting after recovery.
func (r *StateRepository) SetLastSync(utcZ string) error {
	if err := r.Set(keyLastSync, utcZ); err != nil {
		return err
	}
	if err := r.Set(keyLastError, ""); err != nil {
		return err
	}
	return r.Set(keyLastErrorAt, "0")
}

// LastSync returns the last successful sync timestamp, empty when never run.
func (r *StateRepository) LastSync() (string, error) {
	return r.Get(keyLastSync)
}

// RecordError stores the failure text (bounded) with its occurrence time for
// the external alerting consumer.
func (r *StateRepository) RecordError(msg string) error {
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	if err := r.Set(keyLastError, msg); err != nil {
		return err
	}
	return r.Set(keyLastErrorAt, fmt.Sprintf("%d", r.now().Unix()))
}

// AlertState is the at-most-once alerting view of the error state.
type AlertState struct {
	Message    string `json:"message,omitempty"`
	OccurredAt int64  `json:"occurred_at,omitempty"`
	NotifiedAt int64  `json:"notified_at,omitempty"`
}

// ShouldNotify reports whether the stored error is new since the last
// notification.
func (a AlertState) ShouldNotify() bool {
	return a.Message != "" && a.OccurredAt > a.NotifiedAt
}

// Alert returns the current alert state.
func (r *StateRepository) Alert() (AlertState, error) {
	var st AlertState
	var err error

	if st.Message, err = r.Get(keyLastError); err != nil {
		return st, err
	}
	if st.OccurredAt, err = r.getInt(keyLastErrorAt); err != nil {
		return st, err
	}
	if st.NotifiedAt, err = r.getInt(keyLastErrorNotified); err != nil {
		return st, err
	}
	return st, nil
}

// ConsumeAlert returns the pending alert, if any, and advances the notified
// marker to its occurrence time. Each distinct error occurrence is delivered
// at most once no matter how often the consumer polls.
func (r *StateRepository) ConsumeAlert() (*AlertState, error) {
	st, err := r.Alert()
	if err != nil {
		return nil, err
	}
	if !st.ShouldNotify() {
		return nil, nil
	}
	if err := r.Set(keyLastErrorNotified, fmt.Sprintf("%d", st.OccurredAt)); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *StateRepository) getInt(key string) (int64, error) {
	raw, err := r.Get(key)
	if err != nil || raw == "" {
		return 0, err
	}
	var v int64
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, nil
	}
	return v, nil
}
