package bot

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"serotonyl.ru/guardian-bot/internal/features/moderation"
)

func TestClassifyTelegramError(t *testing.T) {
	assert := assert.New(t)

	err := classifyTelegramError("ban", &tgbotapi.Error{Code: 400, Message: "Bad Request: not enough rights"})
	assert.ErrorIs(err, moderation.ErrEnforcementRejected)
	assert.Contains(err.Error(), "not enough rights")

	err = classifyTelegramError("ban", &tgbotapi.Error{Code: 403, Message: "Forbidden"})
	assert.ErrorIs(err, moderation.ErrEnforcementRejected)

	err = classifyTelegramError("mute", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"})
	assert.NotErrorIs(err, moderation.ErrEnforcementRejected)

	err = classifyTelegramError("mute", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"})
	assert.NotErrorIs(err, moderation.ErrEnforcementRejected)

	cause := errors.New("connection reset")
	err = classifyTelegramError("unban", cause)
	assert.ErrorIs(err, cause)
	assert.NotErrorIs(err, moderation.ErrEnforcementRejected)
}
