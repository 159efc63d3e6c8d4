package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"serotonyl.ru/guardian-bot/internal/toxicity"
)

// Chatter — модель, которая продолжает диалог (toxicity.GeminiClient).
type Chatter interface {
	Chat(ctx context.Context, history []toxicity.Turn, text string) (string, error)
}

// Service ведёт диалоги пользователей с моделью.
// Диалог привязан к пользователю, а не к чату, и живёт SessionTTL после последнего вопроса.
type Service struct {
	chatter  Chatter
	cfg      Config
	sem      *semaphore.Weighted
	mu       sync.Mutex
	sessions *expirable.LRU[int64, []toxicity.Turn]
}

// NewService создаёт ассистента поверх модели.
func NewService(chatter Chatter, cfg Config) *Service {
	return &Service{
		chatter:  chatter,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(max(cfg.MaxConcurrency, 1)),
		sessions: expirable.NewLRU[int64, []toxicity.Turn](max(cfg.MaxSessions, 1), nil, cfg.SessionTTL),
	}
}

// Ask задаёт вопрос от имени userID, продолжая его диалог.
// Неудачный вопрос в диалог не попадает.
func (s *Service) Ask(ctx context.Context, userID int64, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		assistantQuestions.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("ассистент занят: %w", err)
	}
	defer s.sem.Release(1)

	answer, err := s.chatter.Chat(ctx, s.History(userID), question)
	if err != nil {
		assistantQuestions.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("user_id", userID).Warn("Ассистент не ответил")
		return "", fmt.Errorf("ошибка ассистента: %w", err)
	}
	answer = strings.TrimSpace(answer)

	s.remember(userID, question, answer)
	assistantQuestions.WithLabelValues("ok").Inc()
	return answer, nil
}

// History возвращает копию диалога пользователя.
func (s *Service) History(userID int64) []toxicity.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, _ := s.sessions.Get(userID)
	return slices.Clone(turns)
}

// Reset забывает диалог пользователя.
func (s *Service) Reset(userID int64) {
	s.sessions.Remove(userID)
}

func (s *Service) remember(userID int64, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _ := s.sessions.Get(userID)
	turns = append(slices.Clone(turns),
		toxicity.Turn{Role: toxicity.RoleUser, Text: question},
		toxicity.Turn{Role: toxicity.RoleModel, Text: answer},
	)
	if limit := 2 * s.cfg.MaxExchanges; limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	// Add продлевает TTL диалога
	s.sessions.Add(userID, turns)
}
