package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/guardian-bot/internal/common"
)

func TestParseAdjustArgs(t *testing.T) {
	assert := assert.New(t)

	points, reason, err := ParseAdjustArgs("15 флуд в чате", DefaultWarnPoints, 1000)
	assert.NoError(err)
	assert.Equal(15, points)
	assert.Equal("флуд в чате", reason)

	points, _, err = ParseAdjustArgs("-20 спам", DefaultWarnPoints, 1000)
	assert.NoError(err)
	assert.Equal(20, points)

	_, _, err = ParseAdjustArgs("0 ничего", DefaultWarnPoints, 1000)
	assert.ErrorIs(err, common.ErrInvalidAmount)

	_, _, err = ParseAdjustArgs("10", DefaultWarnPoints, 1000)
	assert.Error(err)

	_, _, err = ParseAdjustArgs("", DefaultWarnPoints, 1000)
	assert.Error(err)
}

func TestParseAdjustArgsDefaultPoints(t *testing.T) {
	assert := assert.New(t)

	points, reason, err := ParseAdjustArgs("флуд в чате", DefaultWarnPoints, 1000)
	assert.NoError(err)
	assert.Equal(10, points)
	assert.Equal("флуд в чате", reason)

	points, reason, err = ParseAdjustArgs("помог новичку", DefaultRewardPoints, 1000)
	assert.NoError(err)
	assert.Equal(5, points)
	assert.Equal("помог новичку", reason)
}

func TestParseAdjustArgsBounded(t *testing.T) {
	for _, args := range []string{
		"1001 много",
		"-1001 много",
		"9223372036854775807 x",
		"-9223372036854775808 x",
		"99999999999999999999 x",
	} {
		_, _, err := ParseAdjustArgs(args, DefaultRewardPoints, 1000)
		assert.ErrorIs(t, err, common.ErrInvalidAmount, args)
	}

	points, _, err := ParseAdjustArgs("-1000 предел", DefaultWarnPoints, 1000)
	assert.NoError(t, err)
	assert.Equal(t, 1000, points)
}

func TestFormatWarning(t *testing.T) {
	out := &Outcome{Tier: TierSevere, Penalty: 25, NewScore: 75, Reason: "Запрещённые слова: frick"}
	assert.Equal(t, "🚨 Предупреждение! Запрещённые слова: frick\n📉 -25 | Осталось: 75 очков", FormatWarning(out))

	out = &Outcome{Tier: TierMild, Penalty: 10, NewScore: 1, Reason: "x"}
	assert.Contains(t, FormatWarning(out), "💡")
	assert.Contains(t, FormatWarning(out), "Осталось: 1 очко")
}
