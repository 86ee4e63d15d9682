package leaderboard

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/domain"
)

// SnapshotRepository persists and serves frozen weekly leaderboards.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Init creates the snapshot tables if missing.
func (r *SnapshotRepository) Init() error {
	if _, err := r.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot has already been frozen for the week and
// scope.
func (r *SnapshotRepository) Exists(clanID, platform, weekStartUTC string, scope domain.Scope) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM weekly_snapshot_meta
		 WHERE clan_id = ? AND platform = ? AND week_start_utc = ? AND scope = ?
	`, clanID, platform, weekStartUTC, string(scope)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot meta: %w", err)
	}
	return true, nil
}

// Freeze persists the meta row and the frozen top list in one transaction.
// Write-once: when meta already exists the call is a no-op, existing rows
// are never recomputed or overwritten.
func (r *SnapshotRepository) Freeze(clanID, platform, weekStartUTC, weekEndUTC string, scope domain.Scope, rows []domain.LeaderboardRow) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO weekly_snapshot_meta
		  (clan_id, platform, week_start_utc, week_end_utc, scope)
		VALUES (?, ?, ?, ?, ?)
	`, clanID, platform, weekStartUTC, weekEndUTC, string(scope))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot meta: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read snapshot meta result: %w", err)
	}
	if inserted == 0 {
		// Already frozen.
		return nil
	}

	for i, row := range rows {
		if _, err := tx.Exec(`
			INSERT INTO weekly_snapshot_rows
			  (clan_id, platform, week_start_utc, scope, rank, player_name, kills)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, clanID, platform, weekStartUTC, string(scope), i+1, row.PlayerName, row.Kills); err != nil {
			return fmt.Errorf("failed to insert snapshot row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	r.log.Info().
		Str("week_start", weekStartUTC).
		Str("scope", string(scope)).
		Int("rows", len(rows)).
		Msg("Snapshot frozen")
	return nil
}

// Fetch returns the frozen snapshot for a week and scope, or nil when none
// was ever frozen. A snapshot with zero rows is valid: the clan had no
// qualifying activity that week.
func (r *SnapshotRepository) Fetch(clanID, platform, weekStartUTC string, scope domain.Scope, limit int) (*domain.Snapshot, error) {
	if limit <= 0 {
		limit = 10
	}

	snap := &domain.Snapshot{
		ClanID:    clanID,
		Platform:  platform,
		WeekStart: weekStartUTC,
		Scope:     scope,
	}

	err := r.db.QueryRow(`
		SELECT week_end_utc, created_at_utc
		  FROM weekly_snapshot_meta
		 WHERE clan_id = ? AND platform = ? AND week_start_utc = ? AND scope = ?
	`, clanID, platform, weekStartUTC, string(scope)).Scan(&snap.WeekEnd, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot meta: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT player_name, kills
		  FROM weekly_snapshot_rows
		 WHERE clan_id = ? AND platform = ? AND week_start_utc = ? AND scope = ?
		 ORDER BY rank ASC
		 LIMIT ?
	`, clanID, platform, weekStartUTC, string(scope), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.PlayerName, &row.Kills); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, rows.Err()
}
