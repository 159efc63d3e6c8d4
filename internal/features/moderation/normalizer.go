package moderation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer приводит текст к канонической форме, чтобы замаскированные слова совпадали:
//  1. нижний регистр по правилам языка;
//  2. замена символов по таблице (цифры и знаки вместо букв, «шумовые» символы удаляются);
//  3. серии из 3+ одинаковых символов сжимаются до 2.
//
// Больше ничего не меняется. Таблица замен проверяется при загрузке
// (значения в нижнем регистре и без ключей), поэтому Normalize идемпотентна.
type Normalizer struct {
	lang          language.Tag
	substitutions map[rune]string
}

// NewNormalizer создаёт нормализатор для языка и таблицы замен.
func NewNormalizer(lang language.Tag, substitutions map[rune]string) *Normalizer {
	return &Normalizer{lang: lang, substitutions: substitutions}
}

// Normalize возвращает каноническую форму текста.
func (n *Normalizer) Normalize(text string) string {
	// cases.Caser хранит состояние, на каждый вызов — свой
	lowered := cases.Lower(n.lang).String(text)

	var sb strings.Builder
	sb.Grow(len(lowered))
	for _, r := range lowered {
		if sub, ok := n.substitutions[r]; ok {
			sb.WriteString(sub)
			continue
		}
		sb.WriteRune(r)
	}
	return collapseRuns(sb.String())
}

// collapseRuns сжимает серии из 3+ одинаковых рун до двух.
func collapseRuns(s string) string {
	var (
		sb   strings.Builder
		prev rune = -1
		run  int
	)
	sb.Grow(len(s))
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run <= 2 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
