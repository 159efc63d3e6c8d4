// Package actionstore помнит, какое наказание уже применено к пользователю в чате,
// чтобы повторное пересечение порога не слало тот же бан или мут ещё раз.
package actionstore

import (
	"context"
	"strconv"
	"time"
)

// Store — память о применённых наказаниях.
// Get возвращает "" для отсутствующего или истёкшего ключа.
// ttl == 0 — запись без срока.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, action string, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
}

// Key строит ключ для пары (чат, пользователь).
func Key(communityID, userID int64) string {
	return strconv.FormatInt(communityID, 10) + "/" + strconv.FormatInt(userID, 10)
}
