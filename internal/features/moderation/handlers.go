// Package moderation — handlers.go связывает конвейер с сообщениями Telegram:
// проверка сообщений, предупреждения в чате, команды /warn и /reward.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
)

// WarningTTL — через сколько бот удаляет своё предупреждение из чата.
const WarningTTL = 30 * time.Second

// Очки /warn и /reward, если модератор указал только причину.
const (
	DefaultWarnPoints   = 10
	DefaultRewardPoints = 5
)

// Handler обрабатывает сообщения групп.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик модерации.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleGroupMessage прогоняет сообщение через конвейер и предупреждает автора.
func (h *Handler) HandleGroupMessage(ctx context.Context, msg *tgbotapi.Message, privileged bool) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	out, err := h.service.ApplyModeration(ctx, Message{
		Text:               text,
		AuthorID:           msg.From.ID,
		CommunityID:        msg.Chat.ID,
		AuthorIsPrivileged: privileged,
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": msg.From.ID,
			"chat_id": msg.Chat.ID,
		}).Error("Ошибка модерации сообщения")
		return
	}
	if out.Skipped || out.Penalty <= 0 {
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, FormatWarning(out))
	reply.ReplyToMessageID = msg.MessageID
	sent, err := h.bot.Send(reply)
	if err != nil {
		log.WithError(err).Warn("Не удалось отправить предупреждение")
		return
	}
	time.AfterFunc(WarningTTL, func() {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(sent.Chat.ID, sent.MessageID)); err != nil {
			log.WithError(err).Debug("Не удалось удалить предупреждение")
		}
	})
}

// HandleWarn — /warn <очки> <причина> в ответ на сообщение нарушителя.
func (h *Handler) HandleWarn(ctx context.Context, msg *tgbotapi.Message) {
	h.handleAdjust(ctx, msg, -1, DefaultWarnPoints, "Mod")
}

// HandleReward — /reward <очки> <причина> в ответ на сообщение участника.
func (h *Handler) HandleReward(ctx context.Context, msg *tgbotapi.Message) {
	h.handleAdjust(ctx, msg, +1, DefaultRewardPoints, "Reward")
}

func (h *Handler) handleAdjust(ctx context.Context, msg *tgbotapi.Message, sign, defaultPoints int, prefix string) {
	chatID := msg.Chat.ID
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil || msg.ReplyToMessage.From.IsBot {
		h.sendMessage(chatID, fmt.Sprintf("↩️ Ответьте этой командой на сообщение участника: /%s [очки] <причина>", msg.Command()))
		return
	}
	points, reason, err := ParseAdjustArgs(msg.CommandArguments(), defaultPoints, h.service.MaxAdjustment())
	if err != nil {
		h.sendMessage(chatID, "❌ "+err.Error())
		return
	}

	target := msg.ReplyToMessage.From
	snippet := msg.ReplyToMessage.Text
	decision, err := h.service.ApplyManual(ctx, chatID, target.ID, sign*points, prefix+": "+reason, snippet)
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка ручного изменения репутации")
		h.sendMessage(chatID, "❌ Не удалось изменить репутацию")
		return
	}

	emoji := "⭐"
	if sign < 0 {
		emoji = "⚠️"
	}
	h.sendMessage(chatID, fmt.Sprintf("%s %s: %s\n%s\nРепутация: %s",
		emoji,
		reputation.DisplayName(target),
		common.FormatPointsDelta(sign*points),
		reason,
		common.FormatScore(decision.ResultingScore)))
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// ParseAdjustArgs разбирает «[очки] <причина>». Без очков берётся defaultPoints.
// Знак очков игнорируется, по модулю они не больше maxPoints.
func ParseAdjustArgs(args string, defaultPoints, maxPoints int) (int, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", errors.New("формат: [очки] <причина>")
	}
	points, err := strconv.Atoi(fields[0])
	if errors.Is(err, strconv.ErrRange) {
		return 0, "", common.ErrInvalidAmount
	}
	if err != nil {
		return defaultPoints, strings.Join(fields, " "), nil
	}
	if len(fields) < 2 {
		return 0, "", errors.New("формат: [очки] <причина>")
	}
	if points == 0 || points > maxPoints || points < -maxPoints {
		return 0, "", common.ErrInvalidAmount
	}
	if points < 0 {
		points = -points
	}
	return points, strings.Join(fields[1:], " "), nil
}

// FormatWarning — текст предупреждения после штрафа.
func FormatWarning(out *Outcome) string {
	emoji := "💡"
	switch out.Tier {
	case TierSevere:
		emoji = "🚨"
	case TierModerate:
		emoji = "⚠️"
	}
	return fmt.Sprintf("%s Предупреждение! %s\n📉 -%d | Осталось: %s",
		emoji, out.Reason, out.Penalty, common.FormatScore(out.NewScore))
}
