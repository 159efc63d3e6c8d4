package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestCommandTarget(t *testing.T) {
	author := &tgbotapi.User{ID: 1}
	other := &tgbotapi.User{ID: 2}
	botUser := &tgbotapi.User{ID: 3, IsBot: true}

	assert.Same(t, author, commandTarget(&tgbotapi.Message{From: author}))
	assert.Same(t, other, commandTarget(&tgbotapi.Message{From: author, ReplyToMessage: &tgbotapi.Message{From: other}}))
	assert.Same(t, author, commandTarget(&tgbotapi.Message{From: author, ReplyToMessage: &tgbotapi.Message{From: botUser}}))
	assert.Same(t, author, commandTarget(&tgbotapi.Message{From: author, ReplyToMessage: &tgbotapi.Message{}}))
}
