package leaderboard

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shadedclan/killboard/internal/domain"
)

// Query scopes one leaderboard fetch.
type Query struct {
	ClanID   string
	Platform string
	StartUTC string // inclusive, canonical Z string
	EndUTC   string // exclusive
	Scope    domain.Scope
	Limit    int
}

// Service computes kill leaderboards over the live match data.
type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewService creates a leaderboard service.
func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("component", "leaderboard").Logger(),
	}
}

// Fetch sums kills per active roster member over matches in
// [StartUTC, EndUTC). Casual and custom matches are always excluded; the
// scope adds the ranked filter. Grouped by display name for human-readable
// boards, ordered by kills descending then name ascending for determinism.
func (s *Service) Fetch(q Query) ([]domain.LeaderboardRow, error) {
	var scopeClause string
	switch q.Scope {
	case domain.ScopeNormal:
		scopeClause = "AND COALESCE(m.is_ranked, 0) = 0"
	case domain.ScopeRanked:
		scopeClause = "AND COALESCE(m.is_ranked, 0) = 1"
	default:
		scopeClause = ""
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT
		  p.player_name AS player_name,
		  COALESCE(SUM(pm.kills), 0) AS kills
		FROM clan_members cm
		JOIN players p
		  ON p.platform = cm.platform AND p.account_id = cm.account_id
		JOIN player_matches pm
		  ON pm.platform = cm.platform AND pm.account_id = cm.account_id
		JOIN matches m
		  ON m.platform = pm.platform AND m.match_id = pm.match_id
		WHERE
		  cm.clan_id = ?
		  AND cm.platform = ?
		  AND COALESCE(cm.is_active, 1) = 1
		  AND m.created_at_utc >= ?
		  AND m.created_at_utc <  ?
		  AND COALESCE(m.is_casual, 0) = 0
		  AND COALESCE(m.is_custom_match, 0) = 0
		  `+scopeClause+`
		GROUP BY p.player_name
		ORDER BY kills DESC, p.player_name ASC
		LIMIT ?
	`, q.ClanID, q.Platform, q.StartUTC, q.EndUTC, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.PlayerName, &row.Kills); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
