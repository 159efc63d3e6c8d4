// Package assistant — вопросы к модели Gemini из чата (/ask) с памятью диалога.
package assistant

import (
	"errors"
	"time"
)

// MaxReplyLength — длина ответа в символах, после которой он обрезается.
const MaxReplyLength = 2000

// ErrEmptyQuestion — команда без текста вопроса.
var ErrEmptyQuestion = errors.New("пустой вопрос")

// Config — ограничения ассистента.
type Config struct {
	Timeout        time.Duration // на один вопрос, включая ожидание слота
	MaxConcurrency int64
	MaxSessions    int
	SessionTTL     time.Duration // диалог забывается после простоя
	MaxExchanges   int           // сколько пар вопрос-ответ помним
}
