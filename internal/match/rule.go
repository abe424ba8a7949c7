package match

import (
	"fmt"
	"regexp"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
)

// Rule scoring caps. Keyword evidence is vocabulary overlap; pattern evidence
// encodes sentence structure and is worth more per hit.
const (
	keywordHitBonus = 0.1
	keywordBonusCap = 0.3
	patternHitBonus = 0.15
	patternBonusCap = 0.4
)

// RuleMatcher scores knowledge points by keyword and regex evidence.
// Keywords across the whole taxonomy are compiled into one Aho-Corasick
// automaton so a query is scanned once regardless of taxonomy size.
// Read-only after construction, safe for concurrent use.
type RuleMatcher struct {
	idx       *taxonomy.Index
	automaton *ahocorasick.Matcher
	keywords  []string
	owners    [][]*taxonomy.KnowledgePoint // owners[i] lists every point declaring keywords[i]
}

// NewRuleMatcher builds the keyword automaton over the taxonomy.
func NewRuleMatcher(idx *taxonomy.Index) *RuleMatcher {
	m := &RuleMatcher{idx: idx}

	seen := make(map[string]int)
	for _, kp := range idx.All() {
		for _, kw := range kp.Keywords {
			kw = strings.ToLower(kw)
			i, ok := seen[kw]
			if !ok {
				i = len(m.keywords)
				seen[kw] = i
				m.keywords = append(m.keywords, kw)
				m.owners = append(m.owners, nil)
			}
			m.owners[i] = append(m.owners[i], kp)
		}
	}

	if len(m.keywords) > 0 {
		m.automaton = ahocorasick.NewStringMatcher(m.keywords)
	}
	return m
}

// Score evaluates the text against every knowledge point, or only the given
// subject's points when subject is non-empty. Points whose negative patterns
// match are excluded outright, whatever their positive evidence.
func (m *RuleMatcher) Score(text, subject string) []Scored {
	lowered := strings.ToLower(textnorm.Collapse(text))
	if lowered == "" {
		return nil
	}

	// One automaton pass collects keyword hits for every owning point.
	kwHits := make(map[string][]string)
	if m.automaton != nil {
		for _, i := range m.automaton.Match([]byte(lowered)) {
			for _, kp := range m.owners[i] {
				kwHits[kp.Path] = append(kwHits[kp.Path], m.keywords[i])
			}
		}
	}

	scope := m.idx.All()
	if subject != "" {
		scope = m.idx.ForSubject(subject)
	}

	var results []Scored
	for _, kp := range scope {
		if matchesAny(kp.NegativePatterns, lowered) {
			continue
		}

		matched := kwHits[kp.Path]
		var patterns []string
		for _, p := range kp.Patterns {
			if p.MatchString(lowered) {
				patterns = append(patterns, p.String())
			}
		}
		if len(matched) == 0 && len(patterns) == 0 {
			continue
		}

		kwBonus := min(keywordBonusCap, keywordHitBonus*float64(len(matched)))
		patBonus := min(patternBonusCap, patternHitBonus*float64(len(patterns)))
		confidence := min(1.0, kp.BaseConfidence+kwBonus+patBonus)

		var reasons []string
		if len(matched) > 0 {
			reasons = append(reasons, fmt.Sprintf("命中關鍵詞: %s", strings.Join(matched, "、")))
		}
		if len(patterns) > 0 {
			reasons = append(reasons, fmt.Sprintf("符合題型模式 %d 項", len(patterns)))
		}

		results = append(results, Scored{Point: kp, Score: confidence, Reasons: reasons})
	}

	sortScored(results)
	return results
}

// matchesAny reports whether any pattern matches the text.
func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
