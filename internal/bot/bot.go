// Package bot содержит главный модуль бота: приём апдейтов, маршрутизацию и остановку.
// bot.go направляет сообщения групп в конвейер модерации, а команды в обработчики.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/bot/filters"
	"serotonyl.ru/guardian-bot/internal/bot/middleware"
	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/features/admin"
	"serotonyl.ru/guardian-bot/internal/features/assistant"
	"serotonyl.ru/guardian-bot/internal/features/moderation"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
)

const helpText = `🛡 Я слежу за порядком в чате и веду репутацию участников.

/rep — ваша репутация (или ответом на сообщение — чужая)
/top — топ-10 чата
/history — последние изменения репутации
/ask <вопрос> — спросить AI (/newchat — начать диалог заново)

Для модераторов (ответом на сообщение):
/warn [очки] <причина> (10 по умолчанию)
/reward [очки] <причина> (5 по умолчанию)`

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	privileges  *filters.PrivilegeResolver
	rateLimiter *middleware.RateLimiter

	moderationHandler *moderation.Handler
	reputationHandler *reputation.Handler
	adminHandler      *admin.Handler
	assistantHandler  *assistant.Handler

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	moderationHandler *moderation.Handler,
	reputationHandler *reputation.Handler,
	adminHandler *admin.Handler,
	assistantHandler *assistant.Handler,
	chatFilter *filters.ChatFilter,
	privileges *filters.PrivilegeResolver,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:               api,
		cfg:               cfg,
		chatFilter:        chatFilter,
		privileges:        privileges,
		rateLimiter:       middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		moderationHandler: moderationHandler,
		reputationHandler: reputationHandler,
		adminHandler:      adminHandler,
		assistantHandler:  assistantHandler,
		inflight:          make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram. Блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	message := update.Message
	if !b.chatFilter.CheckAccess(message) {
		return
	}
	middleware.LogMessage(message)

	if message.Chat.IsPrivate() {
		b.handlePrivate(ctx, message)
		return
	}

	if len(message.NewChatMembers) > 0 {
		b.reputationHandler.HandleNewChatMembers(ctx, message.Chat.ID, message.NewChatMembers)
		return
	}

	privileged := b.privileges.IsPrivileged(message.Chat.ID, message.From.ID)

	if message.IsCommand() {
		if !b.rateLimiter.Allow(message.From.ID) {
			log.WithField("user_id", message.From.ID).Debug("rate limited")
			return
		}
		b.routeGroupCommand(ctx, message, privileged)
		return
	}

	b.moderationHandler.HandleGroupMessage(ctx, message, privileged)
}

// routeGroupCommand маршрутизирует команду группы к нужному обработчику.
func (b *Bot) routeGroupCommand(ctx context.Context, message *tgbotapi.Message, privileged bool) {
	chatID := message.Chat.ID
	log.WithFields(log.Fields{
		"cmd":        message.Command(),
		"privileged": privileged,
	}).Debug("routing command")

	switch message.Command() {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "rep":
		b.reputationHandler.HandleRep(ctx, chatID, commandTarget(message))
	case "top":
		b.reputationHandler.HandleTop(ctx, chatID)
	case "history":
		b.reputationHandler.HandleHistory(ctx, chatID, commandTarget(message))
	case "ask":
		b.assistantHandler.HandleAsk(ctx, message)
	case "newchat":
		b.assistantHandler.HandleReset(ctx, message)
	case "warn":
		if privileged {
			b.moderationHandler.HandleWarn(ctx, message)
		}
	case "reward":
		if privileged {
			b.moderationHandler.HandleReward(ctx, message)
		}
	}
}

// handlePrivate — личные сообщения: консоль модератора, ассистент и справка.
func (b *Bot) handlePrivate(ctx context.Context, message *tgbotapi.Message) {
	if b.adminHandler.HandleAdminMessage(ctx, message) {
		return
	}
	if !message.IsCommand() || !b.rateLimiter.Allow(message.From.ID) {
		return
	}
	switch message.Command() {
	case "start", "help":
		b.sendMessage(message.Chat.ID, helpText)
	case "ask":
		b.assistantHandler.HandleAsk(ctx, message)
	case "newchat":
		b.assistantHandler.HandleReset(ctx, message)
	}
}

// commandTarget — автор сообщения, на которое ответили командой, иначе автор команды.
func commandTarget(message *tgbotapi.Message) *tgbotapi.User {
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil && !reply.From.IsBot {
		return reply.From
	}
	return message.From
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
