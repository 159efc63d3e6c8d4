package middleware

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Сколько пользователей помним одновременно.
const rateLimiterSize = 100_000

// RateLimiter ограничивает количество команд на пользователя:
// не больше limit команд за window, с равномерным пополнением.
// Модерация через него не проходит.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[int64, *rate.Limiter]
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	if limit > 0 {
		// Запись живёт window после последней команды, к тому моменту корзина уже полная
		rl.limiters = expirable.NewLRU[int64, *rate.Limiter](rateLimiterSize, nil, window)
	}
	return rl
}

func (rl *RateLimiter) Allow(userID int64) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters.Get(userID)
	if !ok {
		lim = rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)
	}
	rl.limiters.Add(userID, lim)
	return lim.AllowN(rl.now(), 1)
}
