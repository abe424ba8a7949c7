package match

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/embedding"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
)

// SemanticMatcher scores knowledge points by dense-embedding cosine
// similarity. When no embedding backend is configured, Enabled reports false
// and Score is a no-op returning an empty list; the rest of the pipeline
// proceeds on rule and lexical evidence alone.
type SemanticMatcher struct {
	embedder embedding.Embedder
	idx      *taxonomy.Index
	cfg      config.MatchConfig

	mu     sync.RWMutex
	points []*taxonomy.KnowledgePoint
	rows   [][]float64 // unit-normalized, aligned with points
}

// NewSemanticMatcher creates an unbuilt matcher. A nil embedder yields a
// permanently disabled matcher.
func NewSemanticMatcher(embedder embedding.Embedder, idx *taxonomy.Index, cfg config.MatchConfig) *SemanticMatcher {
	return &SemanticMatcher{embedder: embedder, idx: idx, cfg: cfg}
}

// Enabled reports whether an embedding backend is configured.
func (m *SemanticMatcher) Enabled() bool {
	return m.embedder != nil
}

// Ready reports whether the point embedding matrix has been built.
func (m *SemanticMatcher) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows != nil
}

// WarmUp builds the knowledge point embedding matrix. Vectors present in the
// snapshot are reused; only missing points hit the backend. A disabled
// matcher warms up as a no-op.
func (m *SemanticMatcher) WarmUp(ctx context.Context, snap *embedding.Snapshot) (*embedding.Snapshot, error) {
	if !m.Enabled() {
		return nil, nil
	}

	points := m.idx.All()
	rows := make([][]float64, len(points))

	// Snapshot vectors are only trusted when they came from the same model
	// at the same dimensionality.
	cached := map[string][]float32{}
	if snap != nil && snap.Model == m.embedder.Model() && snap.Dimensions == m.embedder.Dimensions() {
		cached = snap.Vectors
	}

	out := &embedding.Snapshot{
		Model:      m.embedder.Model(),
		Dimensions: m.embedder.Dimensions(),
		Vectors:    make(map[string][]float32, len(points)),
	}

	for i, kp := range points {
		vec, ok := cached[kp.Path]
		if !ok || len(vec) == 0 {
			embedded, err := m.embedder.Embed(ctx, kp.SyntheticDocument())
			if err != nil {
				return nil, fmt.Errorf("embed knowledge point %s: %w", kp.Path, err)
			}
			vec = embedded
		}
		out.Vectors[kp.Path] = vec
		rows[i] = normalize(toFloat64(vec))
	}

	m.mu.Lock()
	m.points = points
	m.rows = rows
	m.mu.Unlock()
	return out, nil
}

// Score embeds the query and returns up to topK points above the semantic
// floor. Embedding failures degrade to an empty result with the error
// returned for observability; the caller logs it and carries on.
func (m *SemanticMatcher) Score(ctx context.Context, text string, topK int, subject string) ([]Scored, error) {
	if !m.Enabled() {
		return nil, nil
	}

	m.mu.RLock()
	points, rows := m.points, m.rows
	m.mu.RUnlock()
	if rows == nil {
		return nil, nil
	}

	embedded, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	query := normalize(toFloat64(embedded))

	var results []Scored
	for i, kp := range points {
		if subject != "" && kp.Subject != subject {
			continue
		}
		sim := dot(query, rows[i])
		if sim < m.cfg.SemanticFloor {
			continue
		}
		results = append(results, Scored{
			Point:   kp,
			Score:   sim,
			Reasons: []string{fmt.Sprintf("語義相似度 %.2f", sim)},
		})
	}

	sortScored(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func normalize(vec []float64) []float64 {
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b)
}
