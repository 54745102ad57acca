package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_user_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_user_game_state",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_user_achievements",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One record per (user, roadmap). Percentage and status are derived.
CREATE TABLE IF NOT EXISTS user_progress (
    progress_id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    roadmap_id VARCHAR(128) NOT NULL,
    completed_nodes TEXT[] NOT NULL DEFAULT '{}',
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT uq_user_progress_pair UNIQUE (user_id, roadmap_id)
);

CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER GAME STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Level is a function of xp and is never stored.
CREATE TABLE IF NOT EXISTS user_game_state (
    user_id VARCHAR(128) PRIMARY KEY,
    xp INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_active_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (xp >= 0),
    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);
`

const migration002Down = `
DROP TABLE IF EXISTS user_game_state;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: USER ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Append-only unlock log; at most one row per (user, achievement).
CREATE TABLE IF NOT EXISTS user_achievements (
    unlock_id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    achievement_id VARCHAR(128) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT uq_user_achievements_pair UNIQUE (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user_earned ON user_achievements(user_id, earned_at);
`

const migration003Down = `
DROP TABLE IF EXISTS user_achievements;
`
