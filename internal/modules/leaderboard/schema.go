package leaderboard

// Schema for frozen weekly leaderboards. A snapshot is write-once per
// (clan, platform, week, scope): meta records that the freeze happened, rows
// hold the frozen top list.
const Schema = `
CREATE TABLE IF NOT EXISTS weekly_snapshot_meta (
  clan_id        TEXT NOT NULL,
  platform       TEXT NOT NULL,
  week_start_utc TEXT NOT NULL,
  week_end_utc   TEXT NOT NULL,
  scope          TEXT NOT NULL,
  created_at_utc TEXT NOT NULL DEFAULT (datetime('now')),
  PRIMARY KEY (clan_id, platform, week_start_utc, scope)
);

CREATE TABLE IF NOT EXISTS weekly_snapshot_rows (
  clan_id        TEXT NOT NULL,
  platform       TEXT NOT NULL,
  week_start_utc TEXT NOT NULL,
  scope          TEXT NOT NULL,
  rank           INTEGER NOT NULL,
  player_name    TEXT NOT NULL,
  kills          INTEGER NOT NULL,
  PRIMARY KEY (clan_id, platform, week_start_utc, scope, rank)
);

CREATE INDEX IF NOT EXISTS idx_weekly_snapshot_rows_lookup
ON weekly_snapshot_rows (clan_id, platform, week_start_utc, scope);
`
