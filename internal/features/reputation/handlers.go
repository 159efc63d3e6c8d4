// Package reputation — handlers.go обрабатывает команды /rep, /top, /history
// и регистрацию новых участников.
package reputation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
)

// Размеры выборок для команд чата.
const (
	LeaderboardSize = 10
	HistorySize     = 10
)

// Handler обрабатывает команды репутации.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	loc     *time.Location
}

// NewHandler создаёт обработчик команд репутации.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, loc *time.Location) *Handler {
	return &Handler{service: service, bot: bot, loc: loc}
}

// HandleRep — /rep. Показывает профиль автора или того, на чьё сообщение ответили.
func (h *Handler) HandleRep(ctx context.Context, chatID int64, target *tgbotapi.User) {
	rec, err := h.service.GetProfile(ctx, target.ID, chatID)
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка получения профиля")
		h.sendMessage(chatID, "❌ Ошибка получения репутации")
		return
	}
	h.sendMessage(chatID, FormatProfile(DisplayName(target), rec))
}

// HandleTop — /top. Топ-10 чата по репутации.
func (h *Handler) HandleTop(ctx context.Context, chatID int64) {
	records, err := h.service.GetLeaderboard(ctx, chatID, LeaderboardSize)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка получения рейтинга")
		h.sendMessage(chatID, "❌ Ошибка получения рейтинга")
		return
	}

	names := make(map[int64]string, len(records))
	for _, rec := range records {
		names[rec.UserID] = h.resolveName(chatID, rec.UserID)
	}
	h.sendMessage(chatID, FormatLeaderboard(records, names))
}

// HandleHistory — /history. Последние изменения репутации пользователя.
func (h *Handler) HandleHistory(ctx context.Context, chatID int64, target *tgbotapi.User) {
	events, err := h.service.GetHistory(ctx, target.ID, chatID, HistorySize)
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка получения истории")
		h.sendMessage(chatID, "❌ Ошибка получения истории")
		return
	}
	h.sendMessage(chatID, FormatHistory(DisplayName(target), events, h.loc))
}

// HandleNewChatMembers создаёт записи репутации для вступивших участников.
func (h *Handler) HandleNewChatMembers(ctx context.Context, chatID int64, newMembers []tgbotapi.User) {
	for _, user := range newMembers {
		if user.IsBot {
			continue
		}
		if _, err := h.service.GetOrCreate(ctx, user.ID, chatID); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Ошибка регистрации нового участника")
		}
	}
}

// resolveName запрашивает имя участника у Telegram. При ошибке — id.
func (h *Handler) resolveName(chatID, userID int64) string {
	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil || member.User == nil {
		return "id" + strconv.FormatInt(userID, 10)
	}
	return DisplayName(member.User)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// DisplayName возвращает имя пользователя для сообщений в чате.
func DisplayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "id" + strconv.FormatInt(u.ID, 10)
}

// FormatProfile формирует ответ на /rep.
func FormatProfile(name string, rec *Record) string {
	level := LevelFor(rec.Score)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Репутация: %s\n\n", level.Emoji, name)
	fmt.Fprintf(&sb, "⭐ %s\n", common.FormatScore(rec.Score))
	fmt.Fprintf(&sb, "🏷 Уровень: %s\n", level.Title)
	fmt.Fprintf(&sb, "💬 %s %s\n", common.FormatNumber(int64(rec.MessageCount)), common.PluralizeMessages(rec.MessageCount))
	fmt.Fprintf(&sb, "⚠️ %s", common.FormatWarnings(rec.WarningCount))
	return sb.String()
}

// FormatLeaderboard формирует ответ на /top.
func FormatLeaderboard(records []*Record, names map[int64]string) string {
	if len(records) == 0 {
		return "📊 В этом чате пока нет данных о репутации"
	}
	medals := []string{"🥇", "🥈", "🥉"}

	var sb strings.Builder
	sb.WriteString("🏆 Топ по репутации\n")
	for i, rec := range records {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		name, ok := names[rec.UserID]
		if !ok {
			name = "id" + strconv.FormatInt(rec.UserID, 10)
		}
		fmt.Fprintf(&sb, "\n%s %s — %s", place, name, common.FormatScore(rec.Score))
	}
	return sb.String()
}

// FormatHistory формирует ответ на /history.
func FormatHistory(name string, events []*Event, loc *time.Location) string {
	if len(events) == 0 {
		return fmt.Sprintf("📜 У %s пока нет изменений репутации", name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 История репутации: %s\n", name)
	for _, ev := range events {
		fmt.Fprintf(&sb, "\n%s  %s  %s",
			common.FormatDateTime(ev.CreatedAt, loc),
			common.FormatPointsDelta(ev.Delta),
			ev.Reason)
	}
	return sb.String()
}
