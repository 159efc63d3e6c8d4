// Package common — pluralize.go содержит вспомогательные функции
// для форматирования изменений репутации.
// Основная логика плюрализации реализована в helpers.go.
package common

import "fmt"

// FormatPointsDelta создаёт строку вида "+5 очков" или "-10 очков".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatPointsDelta(5)   → "+5 очков"
//	FormatPointsDelta(-10) → "-10 очков"
//	FormatPointsDelta(1)   → "+1 очко"
func FormatPointsDelta(delta int) string {
	if delta >= 0 {
		return fmt.Sprintf("+%d %s", delta, PluralizePoints(int64(delta)))
	}
	return fmt.Sprintf("%d %s", delta, PluralizePoints(int64(delta)))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
}
