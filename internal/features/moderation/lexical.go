package moderation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"serotonyl.ru/guardian-bot/internal/config"
)

// LexicalClassifier ищет настроенные термины в канонической форме текста.
// Термины нормализуются при создании тем же Normalizer, что и сообщения.
type LexicalClassifier struct {
	profanity    map[string]struct{}
	profanityArr []string
	insults      []string
	severe       map[string]struct{}
}

// NewLexicalClassifier нормализует списки слов. Термины, которые после
// нормализации стали пустыми, отбрасываются.
func NewLexicalClassifier(n *Normalizer, terms *config.Terms) *LexicalClassifier {
	c := &LexicalClassifier{
		profanity: make(map[string]struct{}),
		severe:    make(map[string]struct{}),
	}
	for _, term := range terms.Profanity {
		if norm := strings.TrimSpace(n.Normalize(term)); norm != "" {
			c.profanity[norm] = struct{}{}
		}
	}
	for term := range c.profanity {
		c.profanityArr = append(c.profanityArr, term)
	}
	sort.Strings(c.profanityArr)

	seen := make(map[string]bool)
	for _, term := range terms.Insults {
		norm := strings.TrimSpace(n.Normalize(term))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		c.insults = append(c.insults, norm)
	}
	sort.Strings(c.insults)

	for _, term := range terms.Severe {
		if norm := strings.TrimSpace(n.Normalize(term)); norm != "" {
			c.severe[norm] = struct{}{}
		}
	}
	return c
}

// String — краткая сводка для логов.
func (c *LexicalClassifier) String() string {
	return fmt.Sprintf("profanity=%d insults=%d severe=%d", len(c.profanityArr), len(c.insults), len(c.severe))
}

func splitTokenRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
}

// Classify ищет термины в канонической строке:
//  1. токены, совпадающие с термином из profanity;
//  2. термины profanity как подстроки всего текста (склеенные и составные слова);
//  3. оскорбления-фразы как подстроки.
//
// Совпадения объединяются во множество, порядок проходов на результат не влияет.
func (c *LexicalClassifier) Classify(canonical string) LexicalResult {
	var res LexicalResult
	if canonical == "" {
		return res
	}
	matched := make(map[string]struct{})

	for _, tok := range strings.FieldsFunc(canonical, splitTokenRune) {
		if _, ok := c.profanity[tok]; ok {
			matched[tok] = struct{}{}
			res.HasProfanity = true
		}
	}

	for _, term := range c.profanityArr {
		if strings.Contains(canonical, term) {
			matched[term] = struct{}{}
			res.HasProfanity = true
		}
	}

	for _, pattern := range c.insults {
		if strings.Contains(canonical, pattern) {
			matched[pattern] = struct{}{}
			res.HasInsult = true
		}
	}

	if len(matched) > 0 {
		res.MatchedTerms = make([]string, 0, len(matched))
		for term := range matched {
			res.MatchedTerms = append(res.MatchedTerms, term)
		}
		sort.Strings(res.MatchedTerms)
	}
	return res
}

// IsSevere сообщает, что среди совпадений есть термин из severe.
func (c *LexicalClassifier) IsSevere(res LexicalResult) bool {
	for _, term := range res.MatchedTerms {
		if _, ok := c.severe[term]; ok {
			return true
		}
	}
	return false
}
