package matches

// Schema for ingested matches and per-player kill rows.
//
// player_matches cascades with its parent match, so the retention purge is a
// single range delete on matches. idx_matches_time_flags serves both the
// purge and the windowed leaderboard aggregation.
const Schema = `
CREATE TABLE IF NOT EXISTS matches (
  match_id        TEXT PRIMARY KEY,
  platform        TEXT NOT NULL,
  created_at_utc  TEXT NOT NULL,
  game_mode       TEXT,
  is_ranked       INTEGER NOT NULL DEFAULT 0,
  is_custom_match INTEGER NOT NULL DEFAULT 0,
  is_casual       INTEGER NOT NULL DEFAULT 0,
  inserted_at_utc TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS player_matches (
  match_id        TEXT NOT NULL,
  platform        TEXT NOT NULL,
  account_id      TEXT NOT NULL,
  kills           INTEGER NOT NULL DEFAULT 0,
  inserted_at_utc TEXT NOT NULL DEFAULT (datetime('now')),
  PRIMARY KEY (match_id, platform, account_id),
  FOREIGN KEY (match_id) REFERENCES matches(match_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_matches_time_flags
ON matches(created_at_utc, is_ranked, is_casual, is_custom_match);

CREATE INDEX IF NOT EXISTS idx_player_matches_player
ON player_matches(platform, account_id);
`
