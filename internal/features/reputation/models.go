// Package reputation реализует журнал репутации: счёт доверия на пару
// (пользователь, чат) и неизменяемую историю изменений.
// models.go описывает структуры для хранения репутации и событий.
package reputation

import "time"

// Key — ключ записи репутации. Все транзакции журнала локальны для одного ключа.
type Key struct {
	UserID      int64
	CommunityID int64
}

// Record хранит репутацию пользователя в конкретном чате.
type Record struct {
	UserID       int64     `db:"user_id"`
	CommunityID  int64     `db:"community_id"`
	Score        int       `db:"score"`
	MessageCount int       `db:"message_count"`
	WarningCount int       `db:"warning_count"`
	LastActive   time.Time `db:"last_active"`
	CreatedAt    time.Time `db:"created_at"`
}

// Key возвращает ключ записи.
func (r *Record) Key() Key {
	return Key{UserID: r.UserID, CommunityID: r.CommunityID}
}

// Event — запись об изменении репутации. Только добавляется, никогда не меняется.
type Event struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	CommunityID    int64     `db:"community_id"`
	Delta          int       `db:"delta"` // До ограничения диапазоном
	Reason         string    `db:"reason"`
	MessageSnippet string    `db:"message_snippet"`
	CreatedAt      time.Time `db:"created_at"`
}

// Mutation изменяет запись внутри атомарной операции репозитория
// и возвращает событие, которое нужно записать вместе с ней.
type Mutation func(rec *Record) *Event

// Level — уровень доверия для отображения в /rep.
type Level struct {
	Title string
	Emoji string
}

// LevelFor возвращает уровень по значению репутации.
func LevelFor(score int) Level {
	switch {
	case score >= 500:
		return Level{Title: "Легенда", Emoji: "🌟"}
	case score >= 300:
		return Level{Title: "Элита", Emoji: "💎"}
	case score >= 200:
		return Level{Title: "Опытный", Emoji: "🥇"}
	case score >= 100:
		return Level{Title: "Обычный", Emoji: "🥈"}
	case score >= 50:
		return Level{Title: "Под наблюдением", Emoji: "🥉"}
	default:
		return Level{Title: "В зоне риска", Emoji: "⚠️"}
	}
}
