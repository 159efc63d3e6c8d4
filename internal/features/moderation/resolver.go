package moderation

import (
	"strings"

	"serotonyl.ru/guardian-bot/internal/toxicity"
)

// Penalties — штрафы по тяжести.
type Penalties struct {
	Mild     int
	Moderate int
	Severe   int
}

func (p Penalties) For(tier Tier) int {
	switch tier {
	case TierMild:
		return p.Mild
	case TierModerate:
		return p.Moderate
	case TierSevere:
		return p.Severe
	default:
		return 0
	}
}

// Сколько совпавших терминов показывать в причине.
const reasonTermsLimit = 3

// SeverityResolver сводит результаты классификаторов в тяжесть и штраф.
type SeverityResolver struct {
	lexical   *LexicalClassifier
	penalties Penalties
}

func NewSeverityResolver(lexical *LexicalClassifier, penalties Penalties) *SeverityResolver {
	return &SeverityResolver{lexical: lexical, penalties: penalties}
}

// ExternalTier переводит severity 0..10 в тяжесть: ≥7 — severe, 4..6 — moderate, ниже — mild.
func ExternalTier(severity int) Tier {
	switch {
	case severity >= 7:
		return TierSevere
	case severity >= 4:
		return TierModerate
	default:
		return TierMild
	}
}

// Resolve применяет порядок решений:
//  1. термин из severe — severe;
//  2. оскорбление — moderate;
//  3. прочий мат — mild;
//  4. внешний вердикт «токсично» — по его severity;
//  5. иначе clean.
//
// ext == nil — внешний классификатор не вызывался.
func (r *SeverityResolver) Resolve(lex LexicalResult, ext *toxicity.Verdict) ClassificationResult {
	res := ClassificationResult{
		HasProfanity: lex.HasProfanity,
		HasInsult:    lex.HasInsult,
		MatchedTerms: lex.MatchedTerms,
		Tier:         TierClean,
		Source:       SourceNone,
		External:     ext,
	}

	switch {
	case r.lexical.IsSevere(lex):
		res.Tier, res.Source = TierSevere, SourceLexical
	case lex.HasInsult:
		res.Tier, res.Source = TierModerate, SourceLexical
	case lex.HasProfanity:
		res.Tier, res.Source = TierMild, SourceLexical
	// Сбой внешнего классификатора не токсичен: сообщение считается чистым
	case ext != nil && ext.Toxic():
		res.Tier, res.Source = ExternalTier(ext.Severity), SourceExternal
	}

	res.Penalty = r.penalties.For(res.Tier)
	switch res.Source {
	case SourceLexical:
		terms := lex.MatchedTerms
		if len(terms) > reasonTermsLimit {
			terms = terms[:reasonTermsLimit]
		}
		res.Reason = "Запрещённые слова: " + strings.Join(terms, ", ")
	case SourceExternal:
		res.Reason = ext.Reason
		if res.Reason == "" {
			res.Reason = "Токсичное сообщение"
		}
	}
	return res
}
