// Package admin — service.go: вход, сессии и защита от перебора.
package admin

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/common"
	"serotonyl.ru/guardian-bot/internal/config"
)

// Service управляет доступом к консоли модератора.
type Service struct {
	repo Repository
	cfg  *config.Config
	now  func() time.Time
}

func NewService(repo Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// IsAdmin — входит ли пользователь в ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	return s.cfg.IsAdmin(userID)
}

// Login проверяет пароль и открывает сессию на SessionTTL.
// MaxFailedAttempts неудач за AttemptWindow блокируют вход до конца окна.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if s.cfg.AdminPasswordHash == "" {
		return common.ErrConsoleDisabled
	}
	if !s.cfg.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	now := s.now()
	failed, err := s.repo.CountFailedAttempts(ctx, userID, now.Add(-AttemptWindow))
	if err != nil {
		return err
	}
	if failed >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.cfg.AdminPasswordHash)
	if err := s.repo.LogAttempt(ctx, LoginAttempt{UserID: userID, AttemptedAt: now, Success: match}); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль консоли модератора")
		return common.ErrWrongPassword
	}

	if err := s.repo.SaveSession(ctx, userID, now); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Модератор вошёл в консоль")
	return nil
}

// Authorize проверяет сессию и продлевает last_activity.
func (s *Service) Authorize(ctx context.Context, userID int64) error {
	if !s.cfg.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	session, err := s.repo.GetSession(ctx, userID)
	if errors.Is(err, common.ErrRecordNotFound) {
		return common.ErrSessionExpired
	}
	if err != nil {
		return err
	}

	now := s.now()
	if session.Expired(now) {
		if err := s.repo.DeleteSession(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("Не удалось удалить истёкшую сессию")
		}
		return common.ErrSessionExpired
	}
	return s.repo.TouchSession(ctx, userID, now)
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.repo.DeleteSession(ctx, userID)
}
