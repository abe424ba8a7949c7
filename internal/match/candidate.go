// Package match implements the multi-strategy knowledge point matching
// engine: independent rule, lexical, and semantic matchers scored against the
// taxonomy and fused into one ranked, explainable result.
package match

import (
	"sort"

	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
)

// Method names as they appear in method scores and contributing method lists.
const (
	MethodRule     = "rule_based"
	MethodLexical  = "tfidf"
	MethodSemantic = "semantic"
)

// Scored is one matcher's verdict on one knowledge point.
type Scored struct {
	Point   *taxonomy.KnowledgePoint
	Score   float64
	Reasons []string
}

// Candidate is the fused, ranked result for one knowledge point.
type Candidate struct {
	Point               *taxonomy.KnowledgePoint
	Confidence          float64
	MethodScores        map[string]float64
	ContributingMethods []string
	MatchReasons        []string
}

// sortScored orders results by descending score with taxonomy order as the
// stable tie-break, so equal scores always rank identically.
func sortScored(results []Scored) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Point.Ord < results[j].Point.Ord
	})
}
