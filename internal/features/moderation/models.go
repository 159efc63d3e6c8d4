// Package moderation реализует конвейер модерации: нормализация текста,
// лексический и внешний классификаторы, определение тяжести, списание репутации
// и эскалация наказаний.
// models.go описывает типы, которые проходят через конвейер.
package moderation

import "serotonyl.ru/guardian-bot/internal/toxicity"

// Tier — тяжесть нарушения в одном сообщении.
type Tier string

const (
	TierClean    Tier = "clean"
	TierMild     Tier = "mild"
	TierModerate Tier = "moderate"
	TierSevere   Tier = "severe"
)

// Source — кто определил тяжесть.
type Source string

const (
	SourceNone     Source = "none"
	SourceLexical  Source = "lexical"
	SourceExternal Source = "external"
)

// Action — наказание, которое требует текущая репутация.
type Action string

const (
	ActionNone Action = "none"
	ActionMute Action = "mute"
	ActionBan  Action = "ban"
)

// Message — входящее сообщение чата.
type Message struct {
	Text               string
	AuthorID           int64
	CommunityID        int64
	AuthorIsPrivileged bool
}

// LexicalResult — совпадения лексического классификатора.
type LexicalResult struct {
	HasProfanity bool
	HasInsult    bool
	MatchedTerms []string // отсортированы, без повторов
}

// Clean сообщает, что ни одного термина не найдено.
func (r LexicalResult) Clean() bool {
	return !r.HasProfanity && !r.HasInsult
}

// ClassificationResult — итог классификации одного сообщения. Не сохраняется.
type ClassificationResult struct {
	HasProfanity bool
	HasInsult    bool
	Tier         Tier
	MatchedTerms []string
	Penalty      int
	Source       Source
	Reason       string
	// External — вердикт внешнего классификатора, если к нему обращались.
	External *toxicity.Verdict
}

// ActionDecision — решение эскалатора по новой репутации.
type ActionDecision struct {
	Action Action
	// ThresholdCrossed — граница полосы, которая сработала. Имеет смысл при Action != ActionNone.
	ThresholdCrossed int
	ResultingScore   int
}

// Outcome — результат applyModeration для вызывающего слоя.
type Outcome struct {
	Tier     Tier
	Penalty  int
	NewScore int
	Action   Action
	Reason   string
	// Skipped — автор привилегирован, сообщение не проверялось.
	Skipped        bool
	Classification ClassificationResult
}
