package common

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralizePoints(t *testing.T) {
	fixtures := []struct {
		n   int64
		out string
	}{
		{n: 0, out: "очков"},
		{n: 1, out: "очко"},
		{n: 3, out: "очка"},
		{n: 5, out: "очков"},
		{n: 11, out: "очков"},
		{n: 14, out: "очков"},
		{n: 21, out: "очко"},
		{n: 22, out: "очка"},
		{n: -1, out: "очко"},
	}
	for _, fix := range fixtures {
		assert.Equal(t, fix.out, PluralizePoints(fix.n), "n=%d", fix.n)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "150 очков", FormatScore(150))
	assert.Equal(t, "+1 очко", FormatPointsDelta(1))
	assert.Equal(t, "-10 очков", FormatPointsDelta(-10))
	assert.Equal(t, "2 350", FormatNumber(2350))
	assert.Equal(t, "1 000 000", FormatNumber(1000000))
	assert.Equal(t, "-1 005", FormatNumber(-1005))
	assert.Equal(t, "3 предупреждения", FormatWarnings(3))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "şer", Truncate("şerefsiz", 3))

	long := strings.Repeat("ğ", MaxSnippetLength+10)
	assert.Equal(t, MaxSnippetLength, len([]rune(Truncate(long, MaxSnippetLength))))
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, "02.03.2024 00:30", FormatDateTime(ts, LoadLocation("Europe/Moscow")))
	assert.NotNil(t, LoadLocation("Nowhere/Invalid"))
}
