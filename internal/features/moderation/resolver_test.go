package moderation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/guardian-bot/internal/toxicity"
)

var testPenalties = Penalties{Mild: 10, Moderate: 15, Severe: 25}

func TestExternalTier(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(TierMild, ExternalTier(0))
	assert.Equal(TierMild, ExternalTier(3))
	assert.Equal(TierModerate, ExternalTier(4))
	assert.Equal(TierModerate, ExternalTier(6))
	assert.Equal(TierSevere, ExternalTier(7))
	assert.Equal(TierSevere, ExternalTier(10))
}

func TestResolveLexical(t *testing.T) {
	n, lex := newTestLexical(t, testTerms(t))
	r := NewSeverityResolver(lex, testPenalties)

	fixtures := []struct {
		text    string
		tier    Tier
		penalty int
	}{
		{"hello there", TierClean, 0},
		{"darn it", TierMild, 10},
		{"shut up", TierModerate, 15},
		{"darn, shut up", TierModerate, 15},
		{"frick", TierSevere, 25},
		{"frick, shut up", TierSevere, 25},
		{"you fool", TierSevere, 25},
	}
	for _, fix := range fixtures {
		res := r.Resolve(lex.Classify(n.Normalize(fix.text)), nil)
		assert.Equal(t, fix.tier, res.Tier, fix.text)
		assert.Equal(t, fix.penalty, res.Penalty, fix.text)
		if fix.tier == TierClean {
			assert.Equal(t, SourceNone, res.Source, fix.text)
			assert.Empty(t, res.Reason, fix.text)
		} else {
			assert.Equal(t, SourceLexical, res.Source, fix.text)
			assert.Contains(t, res.Reason, "Запрещённые слова: ", fix.text)
		}
	}
}

func TestResolveLexicalWinsOverExternal(t *testing.T) {
	n, lex := newTestLexical(t, testTerms(t))
	r := NewSeverityResolver(lex, testPenalties)

	ext := &toxicity.Verdict{Status: toxicity.StatusOK, IsToxic: true, Severity: 9, Reason: "угроза"}
	res := r.Resolve(lex.Classify(n.Normalize("darn")), ext)
	assert.Equal(t, TierMild, res.Tier)
	assert.Equal(t, SourceLexical, res.Source)
}

func TestResolveExternal(t *testing.T) {
	_, lex := newTestLexical(t, testTerms(t))
	r := NewSeverityResolver(lex, testPenalties)

	fixtures := []struct {
		name    string
		verdict toxicity.Verdict
		tier    Tier
		source  Source
		reason  string
	}{
		{"not toxic", toxicity.Verdict{Status: toxicity.StatusOK, Severity: 8}, TierClean, SourceNone, ""},
		{"severity 3", toxicity.Verdict{Status: toxicity.StatusOK, IsToxic: true, Severity: 3, Reason: "грубо"}, TierMild, SourceExternal, "грубо"},
		{"severity 5", toxicity.Verdict{Status: toxicity.StatusOK, IsToxic: true, Severity: 5}, TierModerate, SourceExternal, "Токсичное сообщение"},
		{"severity 7", toxicity.Verdict{Status: toxicity.StatusOK, IsToxic: true, Severity: 7, Reason: "угроза"}, TierSevere, SourceExternal, "угроза"},
		{"failed", toxicity.Failed(errors.New("timeout")), TierClean, SourceNone, ""},
		{"failed with stale flag", toxicity.Verdict{Status: toxicity.StatusFailed, IsToxic: true, Severity: 9}, TierClean, SourceNone, ""},
	}
	for _, fix := range fixtures {
		v := fix.verdict
		res := r.Resolve(LexicalResult{}, &v)
		assert.Equal(t, fix.tier, res.Tier, fix.name)
		assert.Equal(t, fix.source, res.Source, fix.name)
		assert.Equal(t, testPenalties.For(fix.tier), res.Penalty, fix.name)
		assert.Equal(t, fix.reason, res.Reason, fix.name)
		assert.Same(t, &v, res.External, fix.name)
	}
}

func TestResolveReasonLimitsTerms(t *testing.T) {
	n, lex := newTestLexical(t, testTerms(t))
	r := NewSeverityResolver(lex, testPenalties)

	res := r.Resolve(lex.Classify(n.Normalize("darn heck crap frick")), nil)
	assert.Len(t, res.MatchedTerms, 4)
	assert.Equal(t, "Запрещённые слова: crap, darn, frick", res.Reason)
}
