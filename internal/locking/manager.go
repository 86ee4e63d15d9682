// Package locking provides a TTL-based job lease backed by a single SQLite
// row per job name. Acquisition is one compare-and-swap statement, so two
// concurrent acquirers resolve to exactly one holder, and a crashed holder is
// replaced after its TTL expires rather than by an explicit unlock.
package locking

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/domain"
)

// ErrLockHeld is returned when another holder currently owns the lease.
// Callers treat it as a clean no-op, not a failure.
var ErrLockHeld = errors.New("job lock held by another runner")

const schema = `
CREATE TABLE IF NOT EXISTS job_lock (
  job_name     TEXT PRIMARY KEY,
  locked_until INTEGER NOT NULL,
  locked_by    TEXT NOT NULL,
  updated_at   INTEGER NOT NULL
);
`

// Manager acquires and inspects job leases.
type Manager struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a lock manager.
func NewManager(db *sql.DB, log zerolog.Logger) *Manager {
	return &Manager{
		db:  db,
		log: log.With().Str("component", "locking").Logger(),
		now: time.Now,
	}
}

// Init creates the job_lock table if missing.
func (m *Manager) Init() error {
	if _, err := m.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create job_lock table: %w", err)
	}
	return nil
}

// Lease is a held lock. Release it in a deferred final step.
type Lease struct {
	m        *Manager
	jobName  string
	holderID string
}

// HolderID returns this lease's runner identity.
func (l *Lease) HolderID() string {
	return l.holderID
}

// Acquire attempts to take the lease for jobName with the given TTL. The
// upsert only overwrites an existing row whose locked_until has passed, so a
// live holder always wins and the caller gets ErrLockHeld.
func (m *Manager) Acquire(jobName string, ttl time.Duration) (*Lease, error) {
	holder := holderIdentity()
	now := m.now().Unix()
	until := m.now().Add(ttl).Unix()

	res, err := m.db.Exec(`
		INSERT INTO job_lock (job_name, locked_until, locked_by, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
		  locked_until = excluded.locked_until,
		  locked_by    = excluded.locked_by,
		  updated_at   = excluded.updated_at
		WHERE job_lock.locked_until <= ?
	`, jobName, until, holder, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", jobName, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read lock acquisition result: %w", err)
	}
	if affected == 0 {
		return nil, ErrLockHeld
	}

	m.log.Debug().Str("job", jobName).Str("holder", holder).Int64("until", until).Msg("Lock acquired")
	return &Lease{m: m, jobName: jobName, holderID: holder}, nil
}

// Release frees the lease, but only while this runner still holds it. A lease
// that expired and was reacquired by a newer run is left untouched.
func (l *Lease) Release() error {
	_, err := l.m.db.Exec(
		`DELETE FROM job_lock WHERE job_name = ? AND locked_by = ?`,
		l.jobName, l.holderID,
	)
	if err != nil {
		return fmt.Errorf("failed to release lock %q: %w", l.jobName, err)
	}
	l.m.log.Debug().Str("job", l.jobName).Str("holder", l.holderID).Msg("Lock released")
	return nil
}

// Status reports whether the lease is currently held, for dashboards.
func (m *Manager) Status(jobName string) (domain.LockStatus, error) {
	var st domain.LockStatus
	err := m.db.QueryRow(
		`SELECT locked_until, locked_by FROM job_lock WHERE job_name = ?`,
		jobName,
	).Scan(&st.LockedUntil, &st.LockedBy)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read lock status: %w", err)
	}
	st.Held = st.LockedUntil > m.now().Unix()
	return st, nil
}

// holderIdentity is unique per run: a crashed run's identity never collides
// with its replacement, which keeps Release's fencing sound.
func holderIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + ":" + uuid.NewString()
}
