package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

//go:embed terms.json
var defaultTerms []byte

// Terms — списки слов и таблица замен для лексического классификатора.
type Terms struct {
	Profanity     []string          `json:"profanity"`
	Severe        []string          `json:"severe"`
	Insults       []string          `json:"insults"`
	Substitutions map[string]string `json:"substitutions"`
}

// LoadTerms читает списки слов из JSON-файла.
// Пустой путь — встроенный набор по умолчанию.
func LoadTerms(path string) (*Terms, error) {
	raw := defaultTerms
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать MODERATION_TERMS_FILE: %w", err)
		}
		raw = b
	}
	return ParseTerms(raw)
}

// ParseTerms разбирает JSON со списками слов.
func ParseTerms(raw []byte) (*Terms, error) {
	var t Terms
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("ошибка разбора списков слов: %w", err)
	}
	if t.Substitutions == nil {
		t.Substitutions = map[string]string{}
	}
	return &t, nil
}

// Validate проверяет списки слов и таблицу замен.
//
// Таблица замен должна сохранять идемпотентность нормализации:
//   - ключ — ровно один символ;
//   - значение уже в нижнем регистре;
//   - значение не содержит ни одного ключа таблицы.
func (t *Terms) Validate() error {
	for _, list := range []struct {
		name  string
		terms []string
	}{
		{"profanity", t.Profanity},
		{"severe", t.Severe},
		{"insults", t.Insults},
	} {
		for i, term := range list.terms {
			if strings.TrimSpace(term) == "" {
				return fmt.Errorf("%s[%d]: пустой термин", list.name, i)
			}
		}
	}

	known := make(map[string]bool, len(t.Profanity)+len(t.Insults))
	for _, term := range t.Profanity {
		known[term] = true
	}
	for _, term := range t.Insults {
		known[term] = true
	}
	for _, term := range t.Severe {
		if !known[term] {
			return fmt.Errorf("severe: %q нет ни в profanity, ни в insults", term)
		}
	}

	for key, val := range t.Substitutions {
		if utf8.RuneCountInString(key) != 1 {
			return fmt.Errorf("substitutions: ключ %q должен быть одним символом", key)
		}
		if strings.ToLower(val) != val {
			return fmt.Errorf("substitutions: значение %q для %q не в нижнем регистре", val, key)
		}
		for other := range t.Substitutions {
			if strings.Contains(val, other) {
				return fmt.Errorf("substitutions: значение %q для %q содержит ключ %q", val, key, other)
			}
		}
	}
	return nil
}

// SubstitutionRunes возвращает таблицу замен с ключами-рунами.
func (t *Terms) SubstitutionRunes() map[rune]string {
	out := make(map[rune]string, len(t.Substitutions))
	for key, val := range t.Substitutions {
		r, _ := utf8.DecodeRuneInString(key)
		out[r] = val
	}
	return out
}
