package assistant

import (
	"context"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
)

// Handler обрабатывает /ask и /newchat.
type Handler struct {
	service *Service // nil — ассистент выключен
	bot     *tgbotapi.BotAPI
}

func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleAsk — /ask <вопрос>.
func (h *Handler) HandleAsk(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if h.service == nil {
		h.reply(msg, "🤖 AI сейчас недоступен.")
		return
	}
	question := msg.CommandArguments()
	if question == "" {
		h.reply(msg, "🤖 Формат: /ask <вопрос>")
		return
	}

	if _, err := h.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.WithError(err).Debug("Не удалось отправить статус набора")
	}

	answer, err := h.service.Ask(ctx, msg.From.ID, question)
	if err != nil {
		h.reply(msg, "❌ AI не ответил, попробуйте позже")
		return
	}
	h.reply(msg, FormatAnswer(answer))
}

// HandleReset — /newchat: начать диалог заново.
func (h *Handler) HandleReset(ctx context.Context, msg *tgbotapi.Message) {
	if h.service == nil {
		h.reply(msg, "🤖 AI сейчас недоступен.")
		return
	}
	h.service.Reset(msg.From.ID)
	h.reply(msg, "🧹 Диалог с AI начат заново")
}

func (h *Handler) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := h.bot.Send(out); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// FormatAnswer обрезает ответ до MaxReplyLength символов, отмечая обрезку «...».
// Пустой ответ заменяется пояснением.
func FormatAnswer(answer string) string {
	if answer == "" {
		return "🤖 AI ничего не ответил"
	}
	if utf8.RuneCountInString(answer) <= MaxReplyLength {
		return answer
	}
	return common.Truncate(answer, MaxReplyLength-3) + "..."
}
