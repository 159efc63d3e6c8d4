package reputation

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Легенда", LevelFor(1000).Title)
	assert.Equal("Элита", LevelFor(300).Title)
	assert.Equal("Опытный", LevelFor(250).Title)
	assert.Equal("Обычный", LevelFor(100).Title)
	assert.Equal("Под наблюдением", LevelFor(99).Title)
	assert.Equal("В зоне риска", LevelFor(0).Title)
}

func TestDisplayName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Иван Петров", DisplayName(&tgbotapi.User{ID: 1, FirstName: "Иван", LastName: "Петров"}))
	assert.Equal("@ivan", DisplayName(&tgbotapi.User{ID: 1, UserName: "ivan"}))
	assert.Equal("id42", DisplayName(&tgbotapi.User{ID: 42}))
}

func TestFormatProfile(t *testing.T) {
	out := FormatProfile("Иван", &Record{Score: 85, MessageCount: 1234, WarningCount: 2})

	assert.Contains(t, out, "Иван")
	assert.Contains(t, out, "85 очков")
	assert.Contains(t, out, "Под наблюдением")
	assert.Contains(t, out, "1 234 сообщения")
	assert.Contains(t, out, "2 предупреждения")
}

func TestFormatLeaderboard(t *testing.T) {
	assert := assert.New(t)

	assert.Contains(FormatLeaderboard(nil, nil), "нет данных")

	records := []*Record{
		{UserID: 1, Score: 300},
		{UserID: 2, Score: 200},
		{UserID: 3, Score: 100},
		{UserID: 4, Score: 21},
	}
	out := FormatLeaderboard(records, map[int64]string{1: "Анна", 2: "Борис", 3: "Вера"})
	assert.Contains(out, "🥇 Анна — 300 очков")
	assert.Contains(out, "🥈 Борис — 200 очков")
	assert.Contains(out, "🥉 Вера — 100 очков")
	assert.Contains(out, "4. id4 — 21 очко")
}

func TestFormatHistory(t *testing.T) {
	assert := assert.New(t)
	loc := time.FixedZone("MSK", 3*60*60)

	assert.Contains(FormatHistory("Иван", nil, loc), "нет изменений")

	events := []*Event{
		{Delta: -10, Reason: "Запрещённые слова: amk", CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{Delta: 2, Reason: RecoveryReason, CreatedAt: time.Date(2026, 2, 28, 21, 0, 0, 0, time.UTC)},
	}
	out := FormatHistory("Иван", events, loc)
	assert.Contains(out, "01.03.2026 12:30  -10 очков  Запрещённые слова: amk")
	assert.Contains(out, "01.03.2026 00:00  +2 очка  daily recovery")
}
