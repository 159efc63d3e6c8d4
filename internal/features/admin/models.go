// Package admin реализует консоль модератора в личных сообщениях:
// вход по паролю Argon2id, сессии и ручное управление репутацией.
// models.go описывает сессии и попытки входа.
package admin

import "time"

const (
	// SessionTTL — сколько живёт сессия после входа.
	SessionTTL = 24 * time.Hour
	// MaxFailedAttempts неудачных попыток за AttemptWindow блокируют вход.
	MaxFailedAttempts = 3
	AttemptWindow     = time.Hour
)

// Session — активная сессия модератора. Одна на пользователя.
type Session struct {
	UserID          int64     `db:"user_id"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	LastActivity    time.Time `db:"last_activity"`
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.AuthenticatedAt.Add(SessionTTL))
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	UserID      int64     `db:"user_id"`
	AttemptedAt time.Time `db:"attempted_at"`
	Success     bool      `db:"success"`
}

// AdjustCommand — разобранная команда /adjust.
type AdjustCommand struct {
	CommunityID int64
	UserID      int64
	Delta       int
	Reason      string
}
