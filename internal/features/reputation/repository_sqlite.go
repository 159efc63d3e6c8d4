package reputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"serotonyl.ru/guardian-bot/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       INTEGER NOT NULL,
	community_id  INTEGER NOT NULL,
	score         INTEGER NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	warning_count INTEGER NOT NULL DEFAULT 0,
	last_active   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (user_id, community_id)
);

CREATE INDEX IF NOT EXISTS idx_users_leaderboard ON users (community_id, score DESC, user_id);

CREATE TABLE IF NOT EXISTS reputation_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL,
	community_id    INTEGER NOT NULL,
	delta           INTEGER NOT NULL,
	reason          TEXT NOT NULL,
	message_snippet TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_key ON reputation_history (user_id, community_id, created_at DESC, id DESC);
`

// Время хранится строкой фиксированной ширины в UTC,
// чтобы лексикографический порядок совпадал с хронологическим.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository — однопроцессное хранилище журнала на SQLite.
// Одно соединение: транзакции выполняются строго по очереди.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// OpenSQLite открывает базу по пути и создаёт схему.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("миграция sqlite: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close закрывает соединение с базой.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const sqliteSelectRecord = `
	SELECT user_id, community_id, score, message_count, warning_count, last_active, created_at
	FROM users
`

func (r *SQLiteRepository) GetOrCreate(ctx context.Context, key Key, start int, now time.Time) (*Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapSQLiteError("ошибка начала транзакции", err)
	}
	defer tx.Rollback()

	if err := sqliteEnsure(ctx, tx, key, start, now); err != nil {
		return nil, err
	}
	rec, err := sqliteScanRecord(tx.QueryRowContext(ctx, sqliteSelectRecord+`WHERE user_id = ? AND community_id = ?`,
		key.UserID, key.CommunityID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения репутации (user_id=%d): %w", key.UserID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapSQLiteError("ошибка фиксации транзакции", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Apply(ctx context.Context, key Key, start int, now time.Time, mutate Mutation) (*Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapSQLiteError("ошибка начала транзакции", err)
	}
	defer tx.Rollback()

	if err := sqliteEnsure(ctx, tx, key, start, now); err != nil {
		return nil, err
	}
	rec, err := sqliteScanRecord(tx.QueryRowContext(ctx, sqliteSelectRecord+`WHERE user_id = ? AND community_id = ?`,
		key.UserID, key.CommunityID))
	if err != nil {
		return nil, wrapSQLiteError("ошибка чтения записи", err)
	}

	ev := mutate(rec)

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET score = ?, warning_count = ?, last_active = ?
		WHERE user_id = ? AND community_id = ?
	`, rec.Score, rec.WarningCount, formatSQLiteTime(rec.LastActive), key.UserID, key.CommunityID)
	if err != nil {
		return nil, wrapSQLiteError("ошибка обновления репутации", err)
	}

	if ev != nil {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reputation_history (user_id, community_id, delta, reason, message_snippet, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, key.UserID, key.CommunityID, ev.Delta, ev.Reason, ev.MessageSnippet, formatSQLiteTime(ev.CreatedAt))
		if err != nil {
			return nil, wrapSQLiteError("ошибка записи истории", err)
		}
		if ev.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("ошибка получения id события: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapSQLiteError("ошибка фиксации транзакции", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Touch(ctx context.Context, key Key, start int, now time.Time) error {
	ts := formatSQLiteTime(now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, community_id, score, message_count, last_active, created_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, community_id) DO UPDATE
		SET message_count = message_count + 1, last_active = excluded.last_active
	`, key.UserID, key.CommunityID, start, ts, ts)
	if err != nil {
		return fmt.Errorf("ошибка учёта сообщения: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Leaderboard(ctx context.Context, communityID int64, limit int) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSelectRecord+`
		WHERE community_id = ?
		ORDER BY score DESC, user_id ASC
		LIMIT ?
	`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := sqliteScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) History(ctx context.Context, key Key, limit int) ([]*Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, community_id, delta, reason, message_snippet, created_at
		FROM reputation_history
		WHERE user_id = ? AND community_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, key.UserID, key.CommunityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var (
			ev Event
			ts string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.CommunityID, &ev.Delta,
			&ev.Reason, &ev.MessageSnippet, &ts); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		if ev.CreatedAt, err = parseSQLiteTime(ts); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecoveryCandidates(ctx context.Context, since time.Time, below int) ([]Key, error) {
	ts := formatSQLiteTime(since)
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.user_id, u.community_id
		FROM users u
		WHERE u.last_active >= ? AND u.score < ?
		  AND NOT EXISTS (
			SELECT 1 FROM reputation_history h
			WHERE h.user_id = u.user_id AND h.community_id = u.community_id
			  AND h.delta < 0 AND h.created_at >= ?
		  )
		ORDER BY u.community_id, u.user_id
	`, ts, below, ts)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки для восстановления: %w", err)
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.UserID, &k.CommunityID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func sqliteEnsure(ctx context.Context, tx *sql.Tx, key Key, start int, now time.Time) error {
	ts := formatSQLiteTime(now)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, community_id, score, last_active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, community_id) DO NOTHING
	`, key.UserID, key.CommunityID, start, ts, ts)
	if err != nil {
		return wrapSQLiteError("ошибка создания записи репутации", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanRecord(row rowScanner) (*Record, error) {
	var (
		rec             Record
		active, created string
	)
	err := row.Scan(&rec.UserID, &rec.CommunityID, &rec.Score, &rec.MessageCount,
		&rec.WarningCount, &active, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRecordNotFound
		}
		return nil, err
	}
	if rec.LastActive, err = parseSQLiteTime(active); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректное время %q: %w", s, err)
	}
	return t, nil
}

// wrapSQLiteError помечает SQLITE_BUSY и SQLITE_LOCKED как конфликт журнала.
func wrapSQLiteError(msg string, err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%s: %w: %v", msg, common.ErrLedgerConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
