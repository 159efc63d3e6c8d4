package postgres

// SQL-миграции встроены в бинарник, чтобы деплой был одним файлом.
// Номера только растут; применённую миграцию не редактируем, добавляем новую.
var migrations = []struct {
	version int
	name    string
	sql     string
}{
	{1, "users", migration001Users},
	{2, "reputation_history", migration002History},
	{3, "admin", migration003Admin},
}

const migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT NOT NULL,
    community_id BIGINT NOT NULL,
    score INTEGER NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    warning_count INTEGER NOT NULL DEFAULT 0,
    last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, community_id)
);

CREATE INDEX IF NOT EXISTS idx_users_leaderboard ON users (community_id, score DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_users_last_active ON users (last_active);
`

const migration002History = `
CREATE TABLE IF NOT EXISTS reputation_history (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    community_id BIGINT NOT NULL,
    delta INTEGER NOT NULL,
    reason TEXT NOT NULL,
    message_snippet VARCHAR(500) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_history_key ON reputation_history (user_id, community_id, created_at DESC, id DESC);
`

const migration003Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    user_id BIGINT PRIMARY KEY,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_admin_attempts_user ON admin_login_attempts (user_id, attempted_at);
`
