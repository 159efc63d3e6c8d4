package toxicity

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/semaphore"
)

// PoolConfig — ограничения обращений к внешнему классификатору.
type PoolConfig struct {
	Timeout        time.Duration
	MaxConcurrency int64
	CacheSize      int
	CacheTTL       time.Duration
}

// Pool вызывает классификатор асинхронно: не больше MaxConcurrency запросов сразу,
// каждый не дольше Timeout. Успешные вердикты кэшируются по хэшу текста.
type Pool struct {
	classifier Classifier
	timeout    time.Duration
	sem        *semaphore.Weighted
	cache      *expirable.LRU[uint64, Verdict]
}

// NewPool создаёт пул над классификатором.
func NewPool(classifier Classifier, cfg PoolConfig) *Pool {
	p := &Pool{
		classifier: classifier,
		timeout:    cfg.Timeout,
		sem:        semaphore.NewWeighted(max(cfg.MaxConcurrency, 1)),
	}
	if cfg.CacheSize > 0 {
		p.cache = expirable.NewLRU[uint64, Verdict](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return p
}

func cacheKey(text string) uint64 {
	return murmur3.Sum64([]byte(text))
}

// Check возвращает вердикт для текста. Никогда не возвращает ошибку:
// таймаут, отмена и ошибки классификатора дают вердикт StatusFailed.
func (p *Pool) Check(ctx context.Context, text string) Verdict {
	key := cacheKey(text)
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			externalVerdicts.WithLabelValues("cached").Inc()
			return v
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// Ожидание свободного слота тоже входит в таймаут
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return p.fail(err)
	}

	done := make(chan Verdict, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := p.classifier.CheckToxicity(ctx, text)
		if err != nil {
			v = Failed(err)
		}
		done <- v
	}()

	select {
	case v := <-done:
		if v.Status != StatusOK {
			return p.fail(v.Err)
		}
		if p.cache != nil {
			p.cache.Add(key, v)
		}
		if v.IsToxic {
			externalVerdicts.WithLabelValues("toxic").Inc()
		} else {
			externalVerdicts.WithLabelValues("clean").Inc()
		}
		return v
	case <-ctx.Done():
		return p.fail(ctx.Err())
	}
}

func (p *Pool) fail(err error) Verdict {
	externalVerdicts.WithLabelValues("failed").Inc()
	entry := log.WithError(err)
	if errors.Is(err, context.DeadlineExceeded) {
		entry.Warn("Внешний классификатор не ответил вовремя, считаем сообщение чистым")
	} else {
		entry.Warn("Ошибка внешнего классификатора, считаем сообщение чистым")
	}
	return Failed(err)
}
