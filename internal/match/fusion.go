package match

import (
	"fmt"
	"sort"

	"github.com/ulinhsu/kpmatch-go/internal/config"
)

// Fuse combines per-method results into one ranked candidate list.
//
// Weights apply only to methods that actually scored a point: an absent
// method is "did not contribute", not "scored zero", so a point surfaced by
// the rule matcher alone gets its rule score at full weight. Cross-method
// corroboration is rewarded with an agreement bonus per extra contributing
// method, capped so confidence stays within [0, 1].
func Fuse(cfg config.MatchConfig, byMethod map[string][]Scored, topK int) []Candidate {
	weights := map[string]float64{
		MethodRule:     cfg.RuleWeight,
		MethodLexical:  cfg.LexicalWeight,
		MethodSemantic: cfg.SemanticWeight,
	}

	merged := make(map[string]*Candidate)
	for _, method := range []string{MethodRule, MethodLexical, MethodSemantic} {
		for _, r := range byMethod[method] {
			c, ok := merged[r.Point.Path]
			if !ok {
				c = &Candidate{
					Point:        r.Point,
					MethodScores: make(map[string]float64, len(byMethod)),
				}
				merged[r.Point.Path] = c
			}
			c.MethodScores[method] = r.Score
			c.MatchReasons = append(c.MatchReasons, r.Reasons...)
		}
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		// Fixed accumulation order keeps the float sum deterministic.
		var weighted, weightSum float64
		for _, method := range []string{MethodRule, MethodLexical, MethodSemantic} {
			score, ok := c.MethodScores[method]
			if !ok {
				continue
			}
			w := weights[method]
			weighted += w * score
			weightSum += w
			c.ContributingMethods = append(c.ContributingMethods, method)
		}
		if weightSum == 0 {
			continue
		}

		confidence := weighted / weightSum
		if n := len(c.ContributingMethods); n > 1 {
			confidence += cfg.AgreementBonus * float64(n-1)
			c.MatchReasons = append(c.MatchReasons, fmt.Sprintf("%d 種方法一致判定", n))
		}
		c.Confidence = min(1.0, confidence)

		candidates = append(candidates, *c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Point.Ord < candidates[j].Point.Ord
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
