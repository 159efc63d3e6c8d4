// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
)

// Сколько символов текста попадает в лог.
const logTextLimit = 50

// LogMessage логирует входящее сообщение: user_id, chat_id, username и начало текста.
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if short := common.Truncate(text, logTextLimit); short != text {
		text = short + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     text,
	}).Debug("Входящее сообщение")
}
