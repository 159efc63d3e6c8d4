package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/actionstore"
)

// ErrEnforcementRejected — платформа отказала окончательно (нет прав, пользователь
// не найден). Такие ошибки Sink оборачивает, Enforcer их не повторяет.
var ErrEnforcementRejected = errors.New("платформа отклонила наказание")

// Sink применяет наказания на платформе.
type Sink interface {
	Mute(ctx context.Context, communityID, userID int64, until time.Time, reason string) error
	Ban(ctx context.Context, communityID, userID int64, reason string) error
	// Lift снимает бан и ограничения.
	Lift(ctx context.Context, communityID, userID int64) error
}

// Enforcement — что сделал Enforcer.
type Enforcement string

const (
	EnforcementNone       Enforcement = "none"
	EnforcementSent       Enforcement = "sent"
	EnforcementSuppressed Enforcement = "suppressed"
	EnforcementFailed     Enforcement = "failed"
)

// Enforcer исполняет решения эскалатора. Best-effort: ошибка платформы
// не откатывает журнал, только логируется.
//
// Память о наказаниях (actionstore) не даёт повторять действие:
// записанный бан не отправляется снова, мут — пока не истёк прошлый.
// Решение ActionNone очищает память, следующее пересечение порога сработает заново.
type Enforcer struct {
	sink         Sink
	memory       actionstore.Store
	muteDuration time.Duration
	retries      uint64
	now          func() time.Time
}

// NewEnforcer создаёт исполнителя наказаний.
func NewEnforcer(sink Sink, memory actionstore.Store, muteDuration time.Duration) *Enforcer {
	return &Enforcer{
		sink:         sink,
		memory:       memory,
		muteDuration: muteDuration,
		retries:      3,
		now:          time.Now,
	}
}

// Enforce применяет решение к пользователю.
func (e *Enforcer) Enforce(ctx context.Context, communityID, userID int64, decision ActionDecision, reason string) (Enforcement, error) {
	key := actionstore.Key(communityID, userID)
	logger := log.WithFields(log.Fields{
		"community_id": communityID,
		"user_id":      userID,
		"action":       decision.Action,
		"score":        decision.ResultingScore,
	})

	if decision.Action == ActionNone {
		if err := e.memory.Clear(ctx, key); err != nil {
			logger.WithError(err).Warn("Не удалось очистить память о наказаниях")
		}
		return EnforcementNone, nil
	}

	previous, err := e.memory.Get(ctx, key)
	if err != nil {
		// Без памяти лучше повторить наказание, чем пропустить
		logger.WithError(err).Warn("Память о наказаниях недоступна")
		previous = ""
	}
	if previous == string(ActionBan) || (decision.Action == ActionMute && previous == string(ActionMute)) {
		logger.WithField("previous", previous).Debug("Наказание уже действует, повтор не отправляем")
		enforcementActions.WithLabelValues(string(decision.Action), string(EnforcementSuppressed)).Inc()
		return EnforcementSuppressed, nil
	}

	var ttl time.Duration
	err = e.withRetry(ctx, func(ctx context.Context) error {
		switch decision.Action {
		case ActionBan:
			return e.sink.Ban(ctx, communityID, userID, reason)
		case ActionMute:
			ttl = e.muteDuration
			return e.sink.Mute(ctx, communityID, userID, e.now().Add(e.muteDuration), reason)
		default:
			return fmt.Errorf("неизвестное действие %q", decision.Action)
		}
	})
	if err != nil {
		enforcementActions.WithLabelValues(string(decision.Action), string(EnforcementFailed)).Inc()
		logger.WithError(err).Error("Не удалось применить наказание")
		return EnforcementFailed, err
	}

	if err := e.memory.Set(ctx, key, string(decision.Action), ttl); err != nil {
		logger.WithError(err).Warn("Не удалось запомнить наказание")
	}
	enforcementActions.WithLabelValues(string(decision.Action), string(EnforcementSent)).Inc()
	logger.Info("Наказание применено")
	return EnforcementSent, nil
}

// Pardon снимает наказания и очищает память о них.
func (e *Enforcer) Pardon(ctx context.Context, communityID, userID int64) error {
	if err := e.memory.Clear(ctx, actionstore.Key(communityID, userID)); err != nil {
		return fmt.Errorf("очистка памяти о наказаниях: %w", err)
	}
	return e.withRetry(ctx, func(ctx context.Context) error {
		return e.sink.Lift(ctx, communityID, userID)
	})
}

func (e *Enforcer) withRetry(ctx context.Context, task func(ctx context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	return retry.Do(ctx, retry.WithMaxRetries(e.retries, b), func(ctx context.Context) error {
		err := task(ctx)
		if err == nil || errors.Is(err, ErrEnforcementRejected) {
			return err
		}
		return retry.RetryableError(err)
	})
}
