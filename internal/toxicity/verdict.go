// Package toxicity — внешний классификатор токсичности (Gemini) и пул,
// который ограничивает число параллельных запросов, время ответа и кэширует вердикты.
//
// Внешний вердикт — подсказка, а не истина: любой сбой превращается
// в вердикт со статусом StatusFailed, а не в ошибку конвейера.
package toxicity

import "context"

// Status — исход обращения к внешнему классификатору.
type Status int

const (
	// StatusOK — получен корректный вердикт.
	StatusOK Status = iota
	// StatusFailed — таймаут, сетевая ошибка или неразборчивый ответ.
	StatusFailed
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "failed"
}

// Category — категория, которую вернул классификатор.
type Category string

const (
	CategoryClean     Category = "clean"
	CategoryProfanity Category = "profanity"
	CategoryInsult    Category = "insult"
	CategoryThreat    Category = "threat"
	CategorySpam      Category = "spam"
	CategoryOther     Category = "other"
)

// MaxSeverity — верхняя граница шкалы severity.
const MaxSeverity = 10

// Verdict — результат внешней проверки.
type Verdict struct {
	Status   Status
	IsToxic  bool
	Severity int // 0..10
	Reason   string
	Category Category
	Err      error // только для StatusFailed
}

// Toxic сообщает, что вердикт получен и сообщение признано токсичным.
// Для StatusFailed всегда false.
func (v Verdict) Toxic() bool {
	return v.Status == StatusOK && v.IsToxic
}

// Failed создаёт вердикт-сбой.
func Failed(err error) Verdict {
	return Verdict{Status: StatusFailed, Category: CategoryClean, Err: err}
}

// Classifier — удалённый классификатор токсичности.
type Classifier interface {
	CheckToxicity(ctx context.Context, text string) (Verdict, error)
}
