package domain

import "time"

// Player is a tracked account, unique per (platform, account_id).
// Rows are created or refreshed on every ingestion that observes the player
// and are never deleted.
type Player struct {
	Platform   string `json:"platform"`
	AccountID  string `json:"account_id"`
	PlayerName string `json:"player_name"`
	UpdatedAt  int64  `json:"updated_at"` // epoch seconds
}

// RosterMember is current tracking membership for a clan. Removal is marked
// with is_active=0 and left_at instead of deleting history.
type RosterMember struct {
	ClanID    string  `json:"clan_id"`
	Platform  string  `json:"platform"`
	AccountID string  `json:"account_id"`
	Role      string  `json:"role"`
	IsActive  bool    `json:"is_active"`
	JoinedAt  string  `json:"joined_at"`
	LeftAt    *string `json:"left_at,omitempty"`
}

// ActiveMember is a roster member joined with its player name, the shape the
// sync pipeline and leaderboard queries work with.
type ActiveMember struct {
	AccountID  string `json:"account_id"`
	PlayerName string `json:"player_name"`
}

// Match is one ingested match. Immutable once inserted except for flag
// backfills; purged when CreatedAt falls before the retention cutoff.
type Match struct {
	MatchID       string `json:"match_id"`
	Platform      string `json:"platform"`
	CreatedAt     string `json:"created_at"` // UTC ISO-8601 Z, lexicographically ordered
	GameMode      string `json:"game_mode"`
	IsRanked      bool   `json:"is_ranked"`
	IsCustomMatch bool   `json:"is_custom_match"`
	IsCasual      bool   `json:"is_casual"`
}

// PlayerMatch is one tracked participant's result in a match. Kills are the
// only retained performance metric.
type PlayerMatch struct {
	MatchID   string `json:"match_id"`
	Platform  string `json:"platform"`
	AccountID string `json:"account_id"`
	Kills     int    `json:"kills"`
}

// Scope selects the leaderboard filter dimension. Casual and custom matches
// are excluded from every scope.
type Scope string

const (
	ScopeNormal Scope = "normal" // not ranked
	ScopeRanked Scope = "ranked" // ranked only
	ScopeTotal  Scope = "total"  // both
)

// ParseScope normalizes a user-supplied scope string, defaulting to total.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeNormal, ScopeRanked:
		return Scope(s)
	default:
		return ScopeTotal
	}
}

// LeaderboardRow is one line of a kill leaderboard.
type LeaderboardRow struct {
	PlayerName string `json:"player_name"`
	Kills      int    `json:"kills"`
}

// Snapshot is a frozen weekly leaderboard. CreatedAt is empty only when no
// snapshot exists for the requested week and scope.
type Snapshot struct {
	ClanID    string           `json:"clan_id"`
	Platform  string           `json:"platform"`
	WeekStart string           `json:"week_start"`
	WeekEnd   string           `json:"week_end"`
	Scope     Scope            `json:"scope"`
	CreatedAt string           `json:"created_at"`
	Rows      []LeaderboardRow `json:"rows"`
}

// LockStatus describes the sync job lock for operational dashboards.
type LockStatus struct {
	Held        bool   `json:"held"`
	LockedUntil int64  `json:"locked_until"`
	LockedBy    string `json:"locked_by,omitempty"`
}

// SyncOutcome summarizes one completed sync run.
type SyncOutcome struct {
	Members    int       `json:"members"`
	Candidates int       `json:"candidates"`
	NewMatches int       `json:"new_matches"`
	Inserted   int       `json:"inserted"`
	SkippedOld int       `json:"skipped_old"`
	Purged     int64     `json:"purged"`
	Snapshots  int       `json:"snapshots"`
	FinishedAt time.Time `json:"finished_at"`
}
