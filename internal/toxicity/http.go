package toxicity

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

// leveledLogrus передаёт логи retryablehttp в logrus.
type leveledLogrus struct {
	entry *log.Entry
}

func fieldsOf(keysAndValues []interface{}) log.Fields {
	fields := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

// Ошибки отдельных попыток пишем как WARN: запрос ещё может быть повторён.
func (l leveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fieldsOf(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fieldsOf(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fieldsOf(keysAndValues)).Info(msg)
}

func (l leveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fieldsOf(keysAndValues)).Debug(msg)
}

// RobustHTTPClient возвращает http.Client с повторами на ошибках соединения,
// 5xx (кроме 501) и 429. Общее время ограничивает контекст запроса.
func RobustHTTPClient(retries int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledLogrus{log.WithField("component", "http")})
	return retryClient.StandardClient()
}
