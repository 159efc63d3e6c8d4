// Package moderation — service.go собирает конвейер модерации.
package moderation

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/guardian-bot/internal/config"
	"serotonyl.ru/guardian-bot/internal/features/reputation"
	"serotonyl.ru/guardian-bot/internal/toxicity"
)

// ExternalChecker — внешний классификатор с fail-open семантикой (toxicity.Pool).
type ExternalChecker interface {
	Check(ctx context.Context, text string) toxicity.Verdict
}

// Service — конвейер: сообщение → нормализация → лексика → (внешний, если чисто)
// → тяжесть → журнал → эскалация → наказание.
// Создаётся один раз и передаётся обработчикам, глобального состояния нет.
type Service struct {
	normalizer *Normalizer
	lexical    *LexicalClassifier
	resolver   *SeverityResolver
	escalator  ActionEscalator
	external   ExternalChecker // nil — внешний классификатор выключен
	ledger     *reputation.Service
	enforcer   *Enforcer
}

// NewService собирает конвейер из конфигурации. external может быть nil.
func NewService(cfg *config.Config, ledger *reputation.Service, external ExternalChecker, enforcer *Enforcer) *Service {
	normalizer := NewNormalizer(cfg.Language(), cfg.Terms.SubstitutionRunes())
	lexical := NewLexicalClassifier(normalizer, cfg.Terms)
	log.WithField("terms", lexical.String()).Info("Лексический классификатор готов")

	return &Service{
		normalizer: normalizer,
		lexical:    lexical,
		resolver: NewSeverityResolver(lexical, Penalties{
			Mild:     cfg.PenaltyMild,
			Moderate: cfg.PenaltyModerate,
			Severe:   cfg.PenaltySevere,
		}),
		escalator: ActionEscalator{Mute: cfg.ThresholdMute, Ban: cfg.ThresholdBan},
		external:  external,
		ledger:    ledger,
		enforcer:  enforcer,
	}
}

// Normalize возвращает каноническую форму текста.
func (s *Service) Normalize(text string) string {
	return s.normalizer.Normalize(text)
}

// Classify определяет тяжесть сообщения. Внешний классификатор
// вызывается только если лексика ничего не нашла.
func (s *Service) Classify(ctx context.Context, text string) ClassificationResult {
	lex := s.lexical.Classify(s.normalizer.Normalize(text))

	var ext *toxicity.Verdict
	if lex.Clean() && s.external != nil && strings.TrimSpace(text) != "" {
		v := s.external.Check(ctx, text)
		ext = &v
	}
	return s.resolver.Resolve(lex, ext)
}

// Decide — решение эскалатора для счёта.
func (s *Service) Decide(score int) ActionDecision {
	return s.escalator.Decide(score)
}

// ApplyModeration — полный проход конвейера для одного сообщения.
//
// Ошибка возвращается только при сбое журнала: тогда штраф не применён.
// Сбой внешнего классификатора и платформы в ошибку не превращается.
func (s *Service) ApplyModeration(ctx context.Context, msg Message) (*Outcome, error) {
	logger := log.WithFields(log.Fields{
		"user_id":      msg.AuthorID,
		"community_id": msg.CommunityID,
	})

	// Учёт сообщения идёт до модерации и для привилегированных тоже
	if err := s.ledger.RecordMessage(ctx, msg.AuthorID, msg.CommunityID); err != nil {
		return nil, err
	}

	if msg.AuthorIsPrivileged {
		rec, err := s.ledger.GetOrCreate(ctx, msg.AuthorID, msg.CommunityID)
		if err != nil {
			return nil, err
		}
		return &Outcome{
			Tier:     TierClean,
			NewScore: rec.Score,
			Action:   ActionNone,
			Skipped:  true,
			Classification: ClassificationResult{
				Tier:   TierClean,
				Source: SourceNone,
			},
		}, nil
	}

	res := s.Classify(ctx, msg.Text)
	messagesModerated.WithLabelValues(string(res.Tier), string(res.Source)).Inc()

	out := &Outcome{
		Tier:           res.Tier,
		Penalty:        res.Penalty,
		Action:         ActionNone,
		Reason:         res.Reason,
		Classification: res,
	}

	if res.Penalty <= 0 {
		rec, err := s.ledger.GetOrCreate(ctx, msg.AuthorID, msg.CommunityID)
		if err != nil {
			return nil, err
		}
		out.NewScore = rec.Score
		return out, nil
	}

	score, err := s.ledger.ApplyDelta(ctx, msg.AuthorID, msg.CommunityID, -res.Penalty, res.Reason, msg.Text)
	if err != nil {
		return nil, err
	}
	out.NewScore = score

	decision := s.escalator.Decide(score)
	out.Action = decision.Action
	logger.WithFields(log.Fields{
		"tier":    res.Tier,
		"source":  res.Source,
		"penalty": res.Penalty,
		"score":   score,
		"action":  decision.Action,
	}).Info("Нарушение зафиксировано")

	s.enforce(ctx, msg.CommunityID, msg.AuthorID, decision, res.Reason)
	return out, nil
}

// ApplyManual — ручное изменение репутации модератором (/warn, /reward, /adjust).
// После изменения эскалация работает так же, как для автоматического штрафа.
func (s *Service) ApplyManual(ctx context.Context, communityID, userID int64, delta int, reason, snippet string) (ActionDecision, error) {
	score, err := s.ledger.ApplyDelta(ctx, userID, communityID, delta, reason, snippet)
	if err != nil {
		return ActionDecision{}, err
	}
	decision := s.escalator.Decide(score)
	s.enforce(ctx, communityID, userID, decision, reason)
	return decision, nil
}

// MaxAdjustment — наибольшее по модулю ручное изменение репутации.
func (s *Service) MaxAdjustment() int {
	return s.ledger.MaxDelta()
}

// Pardon снимает наказания пользователя на платформе.
func (s *Service) Pardon(ctx context.Context, communityID, userID int64) error {
	if s.enforcer == nil {
		return nil
	}
	return s.enforcer.Pardon(ctx, communityID, userID)
}

func (s *Service) enforce(ctx context.Context, communityID, userID int64, decision ActionDecision, reason string) {
	if s.enforcer == nil {
		return
	}
	// Журнал уже зафиксирован, ошибка платформы его не откатывает
	_, _ = s.enforcer.Enforce(ctx, communityID, userID, decision, reason)
}
