package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/features/moderation"
)

// TelegramSink применяет наказания через Bot API.
type TelegramSink struct {
	api *tgbotapi.BotAPI
}

var _ moderation.Sink = (*TelegramSink)(nil)

func NewTelegramSink(api *tgbotapi.BotAPI) *TelegramSink {
	return &TelegramSink{api: api}
}

// Mute запрещает писать в чат до until.
func (s *TelegramSink) Mute(ctx context.Context, communityID, userID int64, until time.Time, reason string) error {
	return s.request(ctx, tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: communityID, UserID: userID},
		UntilDate:        until.Unix(),
		Permissions:      &tgbotapi.ChatPermissions{},
	}, "mute", reason)
}

// Ban банит навсегда.
func (s *TelegramSink) Ban(ctx context.Context, communityID, userID int64, reason string) error {
	return s.request(ctx, tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: communityID, UserID: userID},
	}, "ban", reason)
}

// Lift снимает бан (если он был) и возвращает права на сообщения.
func (s *TelegramSink) Lift(ctx context.Context, communityID, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: communityID, UserID: userID}
	if err := s.request(ctx, tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: member,
		OnlyIfBanned:     true,
	}, "unban", ""); err != nil {
		return err
	}
	return s.request(ctx, tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: member,
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
		},
	}, "unrestrict", "")
}

func (s *TelegramSink) request(ctx context.Context, c tgbotapi.Chattable, op, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Request(c); err != nil {
		return classifyTelegramError(op, err)
	}
	log.WithFields(log.Fields{
		"component": "TelegramSink",
		"op":        op,
		"reason":    reason,
	}).Debug("Запрос к Telegram выполнен")
	return nil
}

// classifyTelegramError помечает окончательные отказы (4xx кроме 429)
// как moderation.ErrEnforcementRejected.
func classifyTelegramError(op string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) &&
		tgErr.Code >= http.StatusBadRequest && tgErr.Code < http.StatusInternalServerError &&
		tgErr.Code != http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %s", op, moderation.ErrEnforcementRejected, tgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
