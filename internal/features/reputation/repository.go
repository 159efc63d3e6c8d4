// Package reputation — repository.go выполняет операции с таблицами users и reputation_history.
// Все изменения счёта выполняются в транзакциях БД вместе с записью в историю.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/db/postgres"
)

// Repository — хранилище журнала репутации.
//
// Apply — единица работы: создаёт запись при отсутствии, блокирует её,
// вызывает mutate и сохраняет запись и событие одной транзакцией.
// Ошибки конкурентного доступа оборачиваются в common.ErrLedgerConflict.
type Repository interface {
	GetOrCreate(ctx context.Context, key Key, start int, now time.Time) (*Record, error)
	Apply(ctx context.Context, key Key, start int, now time.Time, mutate Mutation) (*Record, error)
	Touch(ctx context.Context, key Key, start int, now time.Time) error
	Leaderboard(ctx context.Context, communityID int64, limit int) ([]*Record, error)
	History(ctx context.Context, key Key, limit int) ([]*Event, error)
	// RecoveryCandidates — активные с since пользователи без штрафов с since и со счётом ниже below.
	RecoveryCandidates(ctx context.Context, since time.Time, below int) ([]Key, error)
}

// PostgresRepository работает с PostgreSQL через пул pgxpool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository создаёт репозиторий репутации.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectRecord = `
	SELECT user_id, community_id, score, message_count, warning_count, last_active, created_at
	FROM users
`

// GetOrCreate создаёт запись со стартовой репутацией, если её нет.
// Существующий счёт не перезаписывается.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, key Key, start int, now time.Time) (*Record, error) {
	if err := r.ensure(ctx, r.db, key, start, now); err != nil {
		return nil, err
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, selectRecord+`WHERE user_id = $1 AND community_id = $2`,
		key.UserID, key.CommunityID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения репутации (user_id=%d): %w", key.UserID, err)
	}
	return rec, nil
}

// Apply атомарно изменяет запись и добавляет событие в историю.
func (r *PostgresRepository) Apply(ctx context.Context, key Key, start int, now time.Time, mutate Mutation) (*Record, error) {
	// Начинаем транзакцию БД, чтобы обновление счёта и запись истории
	// были атомарными (либо оба произойдут, либо ни одного)
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, wrapPgError("ошибка начала транзакции", err)
	}
	defer tx.Rollback(ctx)

	if err := r.ensure(ctx, tx, key, start, now); err != nil {
		return nil, err
	}

	// Блокируем строку: параллельные изменения того же ключа ждут здесь
	rec, err := scanRecord(tx.QueryRow(ctx, selectRecord+`WHERE user_id = $1 AND community_id = $2 FOR UPDATE`,
		key.UserID, key.CommunityID))
	if err != nil {
		return nil, wrapPgError("ошибка блокировки записи", err)
	}

	ev := mutate(rec)

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET score = $3, warning_count = $4, last_active = $5
		WHERE user_id = $1 AND community_id = $2
	`, key.UserID, key.CommunityID, rec.Score, rec.WarningCount, rec.LastActive)
	if err != nil {
		return nil, wrapPgError("ошибка обновления репутации", err)
	}

	if ev != nil {
		err = tx.QueryRow(ctx, `
			INSERT INTO reputation_history (user_id, community_id, delta, reason, message_snippet, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, key.UserID, key.CommunityID, ev.Delta, ev.Reason, ev.MessageSnippet, ev.CreatedAt).Scan(&ev.ID)
		if err != nil {
			return nil, wrapPgError("ошибка записи истории", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapPgError("ошибка фиксации транзакции", err)
	}
	return rec, nil
}

// Touch увеличивает счётчик сообщений и обновляет last_active.
func (r *PostgresRepository) Touch(ctx context.Context, key Key, start int, now time.Time) error {
	query := `
		INSERT INTO users (user_id, community_id, score, message_count, last_active, created_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (user_id, community_id) DO UPDATE
		SET message_count = users.message_count + 1, last_active = EXCLUDED.last_active
	`
	if _, err := r.db.Exec(ctx, query, key.UserID, key.CommunityID, start, now); err != nil {
		return fmt.Errorf("ошибка учёта сообщения: %w", err)
	}
	return nil
}

// Leaderboard возвращает топ чата. При равном счёте — по возрастанию user_id.
func (r *PostgresRepository) Leaderboard(ctx context.Context, communityID int64, limit int) ([]*Record, error) {
	rows, err := r.db.Query(ctx, selectRecord+`
		WHERE community_id = $1
		ORDER BY score DESC, user_id ASC
		LIMIT $2
	`, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// History возвращает последние события по ключу, новые первыми.
func (r *PostgresRepository) History(ctx context.Context, key Key, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, community_id, delta, reason, message_snippet, created_at
		FROM reputation_history
		WHERE user_id = $1 AND community_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, key.UserID, key.CommunityID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.CommunityID, &ev.Delta,
			&ev.Reason, &ev.MessageSnippet, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// RecoveryCandidates выбирает пользователей для ежедневного восстановления.
func (r *PostgresRepository) RecoveryCandidates(ctx context.Context, since time.Time, below int) ([]Key, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.user_id, u.community_id
		FROM users u
		WHERE u.last_active >= $1 AND u.score < $2
		  AND NOT EXISTS (
			SELECT 1 FROM reputation_history h
			WHERE h.user_id = u.user_id AND h.community_id = u.community_id
			  AND h.delta < 0 AND h.created_at >= $1
		  )
		ORDER BY u.community_id, u.user_id
	`, since, below)
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

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *PostgresRepository) ensure(ctx context.Context, db execer, key Key, start int, now time.Time) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (user_id, community_id, score, last_active, created_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, community_id) DO NOTHING
	`, key.UserID, key.CommunityID, start, now)
	if err != nil {
		return wrapPgError("ошибка создания записи репутации", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.UserID, &rec.CommunityID, &rec.Score, &rec.MessageCount,
		&rec.WarningCount, &rec.LastActive, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// wrapPgError помечает ошибки сериализации и дедлоки как конфликт журнала.
func wrapPgError(msg string, err error) error {
	if postgres.IsRetryable(err) {
		return fmt.Errorf("%s: %w: %v", msg, common.ErrLedgerConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
