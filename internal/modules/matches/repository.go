package matches

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/domain"
)

// SQLite's default parameter ceiling is 999; stay under it when expanding
// IN() lists for the bulk existence check.
const existsChunkSize = 900

// Repository owns all match and player-match SQL.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a match repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "matches").Logger(),
	}
}

// Init creates the match tables and indexes if missing.
func (r *Repository) Init() error {
	if _, err := r.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create match tables: %w", err)
	}
	return nil
}

// ExistingIDs returns which of the candidate match ids are already stored,
// chunked to respect the SQL parameter limit.
func (r *Repository) ExistingIDs(candidates []string) (map[string]bool, error) {
	exist := make(map[string]bool)
	for start := 0; start < len(candidates); start += existsChunkSize {
		end := start + existsChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := r.db.Query(
			"SELECT match_id FROM matches WHERE match_id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing match ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan match id: %w", err)
			}
			exist[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return exist, nil
}

// ClassifiedMatch is one new match with its tracked participants, ready to
// be committed.
type ClassifiedMatch struct {
	Match        domain.Match
	Participants []domain.PlayerMatch
	Names        map[string]string // account_id -> observed display name
}

// CommitBatch writes a batch of classified matches as one atomic
// transaction: insert-or-ignore the match, best-effort player name refresh,
// insert-or-replace the kill rows.
func (r *Repository) CommitBatch(batch []ClassifiedMatch) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer tx.Rollback()

	for _, cm := range batch {
		m := cm.Match
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO matches (
			  match_id, platform, created_at_utc, game_mode, is_ranked, is_custom_match, is_casual
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.MatchID, m.Platform, m.CreatedAt, m.GameMode,
			boolToInt(m.IsRanked), boolToInt(m.IsCustomMatch), boolToInt(m.IsCasual)); err != nil {
			return fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
		}

		for accountID, name := range cm.Names {
			if _, err := tx.Exec(`
				UPDATE players SET player_name = ? WHERE platform = ? AND account_id = ?
			`, name, m.Platform, accountID); err != nil {
				return fmt.Errorf("failed to refresh player name %s: %w", accountID, err)
			}
		}

		for _, pm := range cm.Participants {
			if _, err := tx.Exec(`
				INSERT OR REPLACE INTO player_matches (match_id, platform, account_id, kills)
				VALUES (?, ?, ?, ?)
			`, pm.MatchID, pm.Platform, pm.AccountID, pm.Kills); err != nil {
				return fmt.Errorf("failed to insert player match %s/%s: %w", pm.MatchID, pm.AccountID, err)
			}
		}
	}

	return tx.Commit()
}

// PurgeBefore deletes matches older than the retention cutoff. Kill rows go
// with them via the foreign key cascade. Returns the number of purged
// matches.
func (r *Repository) PurgeBefore(cutoffUTCZ string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM matches WHERE created_at_utc < ?`, cutoffUTCZ)
	if err != nil {
		return 0, fmt.Errorf("failed to purge matches before %s: %w", cutoffUTCZ, err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge count: %w", err)
	}
	return purged, nil
}

// Counts returns (matches, player_matches) row counts for status reporting
// and idempotency checks.
func (r *Repository) Counts() (int64, int64, error) {
	var matchCount, pmCount int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&matchCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count matches: %w", err)
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM player_matches`).Scan(&pmCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count player matches: %w", err)
	}
	return matchCount, pmCount, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
