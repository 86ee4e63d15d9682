package roster

// Schema for tracked players and clan membership. Membership removal is a
// soft delete: is_active=0 plus left_at, so ingested history stays intact.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
  platform    TEXT NOT NULL,
  account_id  TEXT NOT NULL,
  player_name TEXT NOT NULL,
  updated_at  INTEGER NOT NULL,
  PRIMARY KEY (platform, account_id)
);

CREATE TABLE IF NOT EXISTS clan_members (
  clan_id    TEXT NOT NULL,
  platform   TEXT NOT NULL,
  account_id TEXT NOT NULL,
  clan_role  TEXT,
  is_active  INTEGER NOT NULL DEFAULT 1,
  joined_at  TEXT DEFAULT (datetime('now')),
  left_at    TEXT,
  PRIMARY KEY (clan_id, platform, account_id)
);
`
