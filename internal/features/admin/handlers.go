// Package admin — handlers.go обрабатывает команды консоли модератора в личных сообщениях:
// /login <пароль>, /logout, /adjust, /profile, /pardon.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/features/moderation"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
)

const consoleHelp = `🛡 Консоль модератора
/adjust <чат> <пользователь> <±очки> <причина>
/profile <чат> <пользователь>
/pardon <чат> <пользователь>
/logout`

// Handler обрабатывает команды консоли.
type Handler struct {
	service    *Service
	moderation *moderation.Service
	ledger     *reputation.Service
	bot        *tgbotapi.BotAPI
}

func NewHandler(service *Service, moderationService *moderation.Service, ledger *reputation.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:    service,
		moderation: moderationService,
		ledger:     ledger,
		bot:        bot,
	}
}

// HandleAdminMessage обрабатывает команду модератора в DM.
// false — сообщение не для консоли, его разбирают дальше.
func (h *Handler) HandleAdminMessage(ctx context.Context, msg *tgbotapi.Message) bool {
	if !msg.IsCommand() || !h.service.IsAdmin(msg.From.ID) {
		return false
	}
	chatID, userID := msg.Chat.ID, msg.From.ID

	switch msg.Command() {
	case "login":
		h.handleLogin(ctx, msg)
	case "logout":
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка завершения сессии")
		}
		h.sendMessage(chatID, "👋 Сессия завершена")
	case "adjust", "profile", "pardon":
		if err := h.service.Authorize(ctx, userID); err != nil {
			h.sendError(chatID, err)
			return true
		}
		switch msg.Command() {
		case "adjust":
			h.handleAdjust(ctx, chatID, userID, msg.CommandArguments())
		case "profile":
			h.handleProfile(ctx, chatID, msg.CommandArguments())
		case "pardon":
			h.handlePardon(ctx, chatID, userID, msg.CommandArguments())
		}
	default:
		return false
	}
	return true
}

func (h *Handler) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// пароль не должен оставаться в истории чата
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
	}

	password := strings.TrimSpace(msg.CommandArguments())
	if password == "" {
		h.sendMessage(chatID, "🔐 Формат: /login <пароль>")
		return
	}
	if err := h.service.Login(ctx, msg.From.ID, password); err != nil {
		h.sendError(chatID, err)
		return
	}
	h.sendMessage(chatID, "✅ Аутентификация успешна!\n\n"+consoleHelp)
}

func (h *Handler) handleAdjust(ctx context.Context, chatID, adminID int64, args string) {
	cmd, err := ParseAdjust(args, h.ledger.MaxDelta())
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	decision, err := h.moderation.ApplyManual(ctx, cmd.CommunityID, cmd.UserID, cmd.Delta, "Admin: "+cmd.Reason, "")
	if err != nil {
		log.WithError(err).WithField("user_id", cmd.UserID).Error("Ошибка ручного изменения репутации")
		h.sendMessage(chatID, "❌ Не удалось изменить репутацию")
		return
	}
	log.WithFields(log.Fields{
		"admin_id":     adminID,
		"user_id":      cmd.UserID,
		"community_id": cmd.CommunityID,
		"delta":        cmd.Delta,
	}).Info("Репутация изменена через консоль")

	text := fmt.Sprintf("✅ id%d: %s\nРепутация: %s",
		cmd.UserID, common.FormatPointsDelta(cmd.Delta), common.FormatScore(decision.ResultingScore))
	if decision.Action != moderation.ActionNone {
		text += fmt.Sprintf("\nНаказание: %s", decision.Action)
	}
	h.sendMessage(chatID, text)
}

func (h *Handler) handleProfile(ctx context.Context, chatID int64, args string) {
	communityID, userID, err := ParseTarget(args)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	rec, err := h.ledger.GetProfile(ctx, userID, communityID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения профиля")
		h.sendMessage(chatID, "❌ Не удалось получить профиль")
		return
	}
	h.sendMessage(chatID, reputation.FormatProfile(fmt.Sprintf("id%d", userID), rec))
}

func (h *Handler) handlePardon(ctx context.Context, chatID, adminID int64, args string) {
	communityID, userID, err := ParseTarget(args)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	if err := h.moderation.Pardon(ctx, communityID, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка снятия наказаний")
		h.sendMessage(chatID, "❌ Не удалось снять наказания: "+err.Error())
		return
	}
	log.WithFields(log.Fields{
		"admin_id":     adminID,
		"user_id":      userID,
		"community_id": communityID,
	}).Info("Наказания сняты через консоль")
	h.sendMessage(chatID, fmt.Sprintf("🕊 Наказания id%d сняты", userID))
}

func (h *Handler) sendError(chatID int64, err error) {
	h.sendMessage(chatID, "❌ "+err.Error())
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// ParseTarget разбирает «<чат> <пользователь>».
func ParseTarget(args string) (int64, int64, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, 0, errors.New("формат: <чат> <пользователь>")
	}
	communityID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный id чата: %q", fields[0])
	}
	userID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("некорректный id пользователя: %q", fields[1])
	}
	return communityID, userID, nil
}

// ParseAdjust разбирает «<чат> <пользователь> <±очки> <причина>».
// Очки по модулю не больше maxDelta.
func ParseAdjust(args string, maxDelta int) (AdjustCommand, error) {
	fields := strings.Fields(args)
	if len(fields) < 4 {
		return AdjustCommand{}, errors.New("формат: <чат> <пользователь> <±очки> <причина>")
	}
	communityID, userID, err := ParseTarget(strings.Join(fields[:2], " "))
	if err != nil {
		return AdjustCommand{}, err
	}
	delta, err := strconv.Atoi(fields[2])
	if errors.Is(err, strconv.ErrRange) {
		return AdjustCommand{}, common.ErrInvalidAmount
	}
	if err != nil {
		return AdjustCommand{}, fmt.Errorf("очки должны быть числом: %q", fields[2])
	}
	if delta == 0 || delta > maxDelta || delta < -maxDelta {
		return AdjustCommand{}, common.ErrInvalidAmount
	}
	return AdjustCommand{
		CommunityID: communityID,
		UserID:      userID,
		Delta:       delta,
		Reason:      strings.Join(fields[3:], " "),
	}, nil
}
