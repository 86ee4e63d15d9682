package roster

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/domain"
)

// Repository handles player and clan membership persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a roster repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "roster").Logger(),
	}
}

// Init creates the roster tables if missing.
func (r *Repository) Init() error {
	if _, err := r.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create roster tables: %w", err)
	}
	return nil
}

// UpsertPlayer creates or refreshes a player row by its natural key.
func (r *Repository) UpsertPlayer(platform, accountID, playerName string) error {
	_, err := r.db.Exec(`
		INSERT INTO players (platform, account_id, player_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(platform, account_id) DO UPDATE SET
		  player_name = excluded.player_name,
		  updated_at  = excluded.updated_at
	`, platform, accountID, playerName, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", accountID, err)
	}
	return nil
}

// RegisterMember upserts the player row and (re)activates its membership in
// one transaction, mirroring the external registration flow's write shape.
func (r *Repository) RegisterMember(clanID, platform, accountID, playerName, role string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin register tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO players (platform, account_id, player_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(platform, account_id) DO UPDATE SET
		  player_name = excluded.player_name,
		  updated_at  = excluded.updated_at
	`, platform, accountID, playerName, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", accountID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO clan_members (clan_id, platform, account_id, clan_role, is_active, left_at)
		VALUES (?, ?, ?, ?, 1, NULL)
		ON CONFLICT(clan_id, platform, account_id) DO UPDATE SET
		  clan_role = excluded.clan_role,
		  is_active = 1,
		  left_at   = NULL
	`, clanID, platform, accountID, role); err != nil {
		return fmt.Errorf("failed to upsert membership %s: %w", accountID, err)
	}

	return tx.Commit()
}

// DeactivateMember marks a membership removed without deleting history.
func (r *Repository) DeactivateMember(clanID, platform, accountID string) error {
	_, err := r.db.Exec(`
		UPDATE clan_members
		   SET is_active = 0,
		       left_at   = datetime('now')
		 WHERE clan_id = ? AND platform = ? AND account_id = ?
	`, clanID, platform, accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate member %s: %w", accountID, err)
	}
	return nil
}

// ActiveMembers returns the active roster joined with player names.
func (r *Repository) ActiveMembers(clanID, platform string) ([]domain.ActiveMember, error) {
	rows, err := r.db.Query(`
		SELECT cm.account_id, p.player_name
		  FROM clan_members cm
		  JOIN players p
		    ON p.platform = cm.platform AND p.account_id = cm.account_id
		 WHERE cm.clan_id = ?
		   AND cm.platform = ?
		   AND COALESCE(cm.is_active, 1) = 1
		 ORDER BY p.player_name
	`, clanID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query active members: %w", err)
	}
	defer rows.Close()

	var members []domain.ActiveMember
	for rows.Next() {
		var m domain.ActiveMember
		if err := rows.Scan(&m.AccountID, &m.PlayerName); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RefreshPlayerName updates a player's display name in place. Best effort:
// a missing row is not an error, ingestion observed a name we do not track.
func (r *Repository) RefreshPlayerName(platform, accountID, playerName string) error {
	_, err := r.db.Exec(`
		UPDATE players
		   SET player_name = ?,
		       updated_at  = ?
		 WHERE platform = ? AND account_id = ?
	`, playerName, time.Now().Unix(), platform, accountID)
	if err != nil {
		return fmt.Errorf("failed to refresh player name %s: %w", accountID, err)
	}
	return nil
}
