package match

import (
	"fmt"
	"sync"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
	"github.com/ulinhsu/kpmatch-go/internal/tfidf"
)

// LexicalMatcher scores knowledge points by TF-IDF cosine similarity between
// the query and each point's synthetic document. The vectorizer is fit once
// by WarmUp and frozen; Score before WarmUp is a precondition failure, not a
// silent empty result.
type LexicalMatcher struct {
	norm *textnorm.Normalizer
	idx  *taxonomy.Index
	cfg  config.MatchConfig

	mu     sync.RWMutex
	vec    *tfidf.Vectorizer
	points []*taxonomy.KnowledgePoint
	rows   [][]float64
}

// NewLexicalMatcher creates an unbuilt matcher. Call WarmUp before Score.
func NewLexicalMatcher(norm *textnorm.Normalizer, idx *taxonomy.Index, cfg config.MatchConfig) *LexicalMatcher {
	return &LexicalMatcher{norm: norm, idx: idx, cfg: cfg}
}

// WarmUp fits the vectorizer over the synthetic taxonomy corpus and
// precomputes one vector per knowledge point. Idempotent; the second call
// replaces the first atomically.
func (m *LexicalMatcher) WarmUp() error {
	points := m.idx.All()
	if len(points) == 0 {
		return domerrors.NewValidationError("taxonomy", "taxonomy has no knowledge points")
	}

	docs := make([]string, len(points))
	for i, kp := range points {
		docs[i] = kp.SyntheticDocument()
	}

	vec := tfidf.Fit(docs, m.norm.Tokens, tfidf.Config{
		MaxFeatures: m.cfg.MaxFeatures,
		MinDocFreq:  m.cfg.MinDocFreq,
		MaxDocFreq:  m.cfg.MaxDocFreq,
	})

	rows := make([][]float64, len(points))
	for i, doc := range docs {
		rows[i] = vec.Transform(doc)
	}

	m.mu.Lock()
	m.vec = vec
	m.points = points
	m.rows = rows
	m.mu.Unlock()
	return nil
}

// Ready reports whether WarmUp has completed.
func (m *LexicalMatcher) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vec != nil
}

// NumFeatures returns the fitted vocabulary size, 0 before WarmUp.
func (m *LexicalMatcher) NumFeatures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.vec == nil {
		return 0
	}
	return m.vec.NumFeatures()
}

// Score returns up to topK points whose cosine similarity to the text clears
// the lexical floor, restricted to subject when non-empty.
func (m *LexicalMatcher) Score(text string, topK int, subject string) ([]Scored, error) {
	m.mu.RLock()
	vec, points, rows := m.vec, m.points, m.rows
	m.mu.RUnlock()

	if vec == nil {
		return nil, domerrors.ErrNotWarmedUp
	}

	query := vec.Transform(m.norm.Normalize(text))

	var results []Scored
	for i, kp := range points {
		if subject != "" && kp.Subject != subject {
			continue
		}
		sim := tfidf.Cosine(query, rows[i])
		if sim < m.cfg.LexicalFloor {
			continue
		}
		results = append(results, Scored{
			Point:   kp,
			Score:   sim,
			Reasons: []string{fmt.Sprintf("詞彙相似度 %.2f", sim)},
		})
	}

	sortScored(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
