// Package admin — repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/guardian-bot/internal/common"
)

// Repository хранит сессии модераторов и попытки входа.
type Repository interface {
	SaveSession(ctx context.Context, userID int64, at time.Time) error
	GetSession(ctx context.Context, userID int64) (*Session, error)
	TouchSession(ctx context.Context, userID int64, at time.Time) error
	DeleteSession(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, attempt LoginAttempt) error
	CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
}

// PostgresRepository работает с админ-таблицами в PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveSession создаёт сессию или перезапускает существующую.
func (r *PostgresRepository) SaveSession(ctx context.Context, userID int64, at time.Time) error {
	query := `
		INSERT INTO admin_sessions (user_id, authenticated_at, last_activity)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET authenticated_at = EXCLUDED.authenticated_at, last_activity = EXCLUDED.last_activity
	`
	if _, err := r.db.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, userID int64) (*Session, error) {
	query := `SELECT user_id, authenticated_at, last_activity FROM admin_sessions WHERE user_id = $1`
	var s Session
	err := r.db.QueryRow(ctx, query, userID).Scan(&s.UserID, &s.AuthenticatedAt, &s.LastActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) TouchSession(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE admin_sessions SET last_activity = $2 WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID, at)
	return err
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, userID)
	return err
}

func (r *PostgresRepository) LogAttempt(ctx context.Context, attempt LoginAttempt) error {
	query := `INSERT INTO admin_login_attempts (user_id, attempted_at, success) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, attempt.UserID, attempt.AttemptedAt, attempt.Success)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (r *PostgresRepository) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempted_at >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

// MemRepository держит сессии в памяти процесса (STORE_DRIVER=sqlite|memory).
// После перезапуска модераторам нужно войти заново.
type MemRepository struct {
	mu       sync.Mutex
	sessions map[int64]Session
	attempts []LoginAttempt
}

var _ Repository = (*MemRepository)(nil)

func NewMemRepository() *MemRepository {
	return &MemRepository{sessions: make(map[int64]Session)}
}

func (r *MemRepository) SaveSession(ctx context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = Session{UserID: userID, AuthenticatedAt: at, LastActivity: at}
	return nil
}

func (r *MemRepository) GetSession(ctx context.Context, userID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	return &s, nil
}

func (r *MemRepository) TouchSession(ctx context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		s.LastActivity = at
		r.sessions[userID] = s
	}
	return nil
}

func (r *MemRepository) DeleteSession(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

func (r *MemRepository) LogAttempt(ctx context.Context, attempt LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *MemRepository) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
