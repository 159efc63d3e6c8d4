// Package reputation — service.go содержит бизнес-логику журнала репутации.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/config"
)

// RecoveryReason — причина события ежедневного восстановления.
const RecoveryReason = "daily recovery"

// Service управляет журналом репутации.
type Service struct {
	repo Repository
	cfg  *config.Config
	now  func() time.Time
}

// NewService создаёт сервис репутации.
func NewService(repo Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

func (s *Service) key(userID, communityID int64) Key {
	return Key{UserID: userID, CommunityID: communityID}
}

// Clamp ограничивает счёт диапазоном [REPUTATION_MIN, REPUTATION_MAX].
func (s *Service) Clamp(score int) int {
	return min(max(score, s.cfg.ReputationMin), s.cfg.ReputationMax)
}

// GetOrCreate возвращает запись, создавая её со стартовой репутацией.
func (s *Service) GetOrCreate(ctx context.Context, userID, communityID int64) (*Record, error) {
	return s.repo.GetOrCreate(ctx, s.key(userID, communityID), s.cfg.ReputationStart, s.now())
}

// GetProfile возвращает профиль пользователя в чате.
func (s *Service) GetProfile(ctx context.Context, userID, communityID int64) (*Record, error) {
	return s.GetOrCreate(ctx, userID, communityID)
}

// RecordMessage учитывает сообщение: message_count+1, last_active.
func (s *Service) RecordMessage(ctx context.Context, userID, communityID int64) error {
	return s.repo.Touch(ctx, s.key(userID, communityID), s.cfg.ReputationStart, s.now())
}

// MaxDelta — ширина диапазона репутации. Изменение больше неё по модулю
// ничем не отличается от изменения ровно на неё.
func (s *Service) MaxDelta() int {
	return s.cfg.ReputationMax - s.cfg.ReputationMin
}

// ApplyDelta атомарно изменяет репутацию и пишет событие в историю.
// В событие попадает переданная delta (до ограничения диапазоном),
// но не больше MaxDelta по модулю.
// Возвращает новый счёт. Ошибка означает, что изменение не применено.
func (s *Service) ApplyDelta(ctx context.Context, userID, communityID int64, delta int, reason, snippet string) (int, error) {
	snippet = common.Truncate(snippet, common.MaxSnippetLength)
	// Счёт лежит в диапазоне, поэтому сложение с такой delta не переполняется
	delta = min(max(delta, -s.MaxDelta()), s.MaxDelta())

	rec, err := s.apply(ctx, s.key(userID, communityID), func(rec *Record) *Event {
		now := s.now()
		rec.Score = s.Clamp(rec.Score + delta)
		rec.LastActive = now
		if delta < 0 {
			rec.WarningCount++
		}
		return &Event{
			UserID:         userID,
			CommunityID:    communityID,
			Delta:          delta,
			Reason:         reason,
			MessageSnippet: snippet,
			CreatedAt:      now,
		}
	})
	if err != nil {
		return 0, err
	}
	return rec.Score, nil
}

// apply выполняет изменение с повторами при конфликтах конкурентного доступа.
func (s *Service) apply(ctx context.Context, key Key, mutate Mutation) (*Record, error) {
	var rec *Record
	backoff := retry.WithMaxRetries(s.cfg.LedgerMaxRetries, retry.NewExponential(50*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		rec, err = s.repo.Apply(ctx, key, s.cfg.ReputationStart, s.now(), mutate)
		if errors.Is(err, common.ErrLedgerConflict) {
			ledgerConflicts.Inc()
			log.WithFields(log.Fields{
				"user_id":      key.UserID,
				"community_id": key.CommunityID,
			}).WithError(err).Debug("Конфликт обновления репутации, повторяем")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("изменение репутации (user_id=%d, chat_id=%d): %w", key.UserID, key.CommunityID, err)
	}
	return rec, nil
}

// GetLeaderboard возвращает топ чата по репутации.
func (s *Service) GetLeaderboard(ctx context.Context, communityID int64, limit int) ([]*Record, error) {
	if limit <= 0 {
		return nil, common.ErrInvalidLimit
	}
	return s.repo.Leaderboard(ctx, communityID, limit)
}

// GetHistory возвращает последние limit событий пользователя, новые первыми.
func (s *Service) GetHistory(ctx context.Context, userID, communityID int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		return nil, common.ErrInvalidLimit
	}
	return s.repo.History(ctx, s.key(userID, communityID), limit)
}

// Recover начисляет RECOVERY_POINTS активным за сутки пользователям без штрафов,
// не поднимая репутацию выше потолка. Возвращает число изменённых записей.
func (s *Service) Recover(ctx context.Context) (int, error) {
	points := s.cfg.RecoveryPoints
	if points <= 0 {
		return 0, nil
	}
	ceiling := s.Clamp(s.cfg.EffectiveRecoveryCap())
	since := s.now().Add(-24 * time.Hour)

	keys, err := s.repo.RecoveryCandidates(ctx, since, ceiling)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, key := range keys {
		applied := false
		_, err := s.apply(ctx, key, func(rec *Record) *Event {
			applied = false
			gain := min(points, ceiling-rec.Score)
			if gain <= 0 {
				return nil
			}
			rec.Score += gain
			applied = true
			return &Event{
				UserID:      key.UserID,
				CommunityID: key.CommunityID,
				Delta:       gain,
				Reason:      RecoveryReason,
				CreatedAt:   s.now(),
			}
		})
		if err != nil {
			// Отмена контекста прерывает весь проход, остальные ошибки — только этого пользователя
			if ctx.Err() != nil {
				return recovered, ctx.Err()
			}
			log.WithFields(log.Fields{
				"user_id":      key.UserID,
				"community_id": key.CommunityID,
			}).WithError(err).Error("Ошибка восстановления репутации")
			continue
		}
		if applied {
			recovered++
		}
	}
	return recovered, nil
}
