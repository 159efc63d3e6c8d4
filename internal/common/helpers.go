// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, обрезка текста, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// MaxSnippetLength — максимальная длина фрагмента сообщения в истории (в символах).
const MaxSnippetLength = 500

// pluralize выбирает форму слова по правилам русского языка.
//
// Правила:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int64, one, few, many string) string {
	// Берём абсолютное значение для отрицательных чисел
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizePoints возвращает правильную форму слова «очко» для числа n.
//
// Примеры:
//
//	PluralizePoints(1)  → "очко"
//	PluralizePoints(3)  → "очка"
//	PluralizePoints(5)  → "очков"
//	PluralizePoints(11) → "очков"
//	PluralizePoints(21) → "очко"
func PluralizePoints(n int64) string {
	return pluralize(n, "очко", "очка", "очков")
}

// PluralizeMessages возвращает правильную форму слова «сообщение».
func PluralizeMessages(n int) string {
	return pluralize(int64(n), "сообщение", "сообщения", "сообщений")
}

// PluralizeWarnings возвращает правильную форму слова «предупреждение».
func PluralizeWarnings(n int) string {
	return pluralize(int64(n), "предупреждение", "предупреждения", "предупреждений")
}

// FormatScore форматирует репутацию в читабельную строку.
// Пример: FormatScore(150) → "150 очков"
func FormatScore(score int) string {
	return fmt.Sprintf("%d %s", score, PluralizePoints(int64(score)))
}

// FormatWarnings форматирует счётчик предупреждений.
// Пример: FormatWarnings(3) → "3 предупреждения"
func FormatWarnings(n int) string {
	return fmt.Sprintf("%d %s", n, PluralizeWarnings(n))
}

// Truncate обрезает строку до max символов (не байт).
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// LoadLocation возвращает часовой пояс по имени.
// Если не удалось загрузить — используем UTC+3 вручную (как Москва).
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется для отображения истории репутации.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}
