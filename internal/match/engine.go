package match

import (
	"context"
	"strings"
	"time"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/embedding"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
)

// Engine runs the three matchers against the taxonomy and fuses their
// verdicts. Construction wires the matchers but does no fitting; call WarmUp
// once before Match to move the engine from unbuilt to ready.
type Engine struct {
	cfg     config.MatchConfig
	log     *logger.Logger
	metrics *metrics.Metrics

	norm     *textnorm.Normalizer
	taxonomy *taxonomy.Index

	rule     *RuleMatcher
	lexical  *LexicalMatcher
	semantic *SemanticMatcher

	stats *EngineStats
}

// NewEngine wires the matchers over the taxonomy. embedder may be nil, in
// which case semantic matching is disabled for the engine's lifetime.
func NewEngine(cfg config.MatchConfig, norm *textnorm.Normalizer, idx *taxonomy.Index, embedder embedding.Embedder, log *logger.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      log.WithModule("match"),
		metrics:  m,
		norm:     norm,
		taxonomy: idx,
		rule:     NewRuleMatcher(idx),
		lexical:  NewLexicalMatcher(norm, idx, cfg),
		semantic: NewSemanticMatcher(embedder, idx, cfg),
		stats:    NewEngineStats(),
	}
	m.SetSemanticEnabled(e.semantic.Enabled())
	return e
}

// Taxonomy exposes the read-only taxonomy index.
func (e *Engine) Taxonomy() *taxonomy.Index {
	return e.taxonomy
}

// Stats exposes the engine's usage counters.
func (e *Engine) Stats() *EngineStats {
	return e.stats
}

// SemanticEnabled reports whether the embedding backend is configured.
func (e *Engine) SemanticEnabled() bool {
	return e.semantic.Enabled()
}

// Ready reports whether WarmUp has completed.
func (e *Engine) Ready() bool {
	if !e.lexical.Ready() {
		return false
	}
	if e.semantic.Enabled() && !e.semantic.Ready() {
		return false
	}
	return true
}

// WarmUp fits the lexical vectorizer and builds the semantic embedding
// matrix. snap may carry precomputed point embeddings; the updated snapshot
// is returned for persisting (nil when semantic matching is disabled).
func (e *Engine) WarmUp(ctx context.Context, snap *embedding.Snapshot) (*embedding.Snapshot, error) {
	start := time.Now()

	if err := e.lexical.WarmUp(); err != nil {
		return nil, err
	}

	out, err := e.semantic.WarmUp(ctx, snap)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.metrics.RecordWarmupDuration(elapsed.Seconds())
	e.log.WithFields(map[string]any{
		"points":           e.taxonomy.Len(),
		"lexical_features": e.lexical.NumFeatures(),
		"semantic":         e.semantic.Enabled(),
		"duration_ms":      elapsed.Milliseconds(),
	}).Info("Engine warmup complete")
	return out, nil
}

// Match scores the text against the taxonomy and returns up to topK fused
// candidates. An empty or blank text returns an empty list, never an error;
// subjectHint restricts scoring to one subject's points.
func (e *Engine) Match(ctx context.Context, text string, topK int, subjectHint string) ([]Candidate, error) {
	start := time.Now()

	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	if strings.TrimSpace(text) == "" {
		e.metrics.RecordMatch("empty", time.Since(start).Seconds())
		return []Candidate{}, nil
	}

	byMethod, contributing, err := e.runMatchers(ctx, text, topK, subjectHint)
	if err != nil {
		e.metrics.RecordMatch("error", time.Since(start).Seconds())
		return nil, err
	}

	candidates := Fuse(e.cfg, byMethod, topK)

	top := 0.0
	if len(candidates) > 0 {
		top = candidates[0].Confidence
	}
	e.stats.Record(contributing, top)
	for _, m := range contributing {
		e.metrics.RecordMethodUsage(m)
	}
	e.metrics.RecordMatch("ok", time.Since(start).Seconds())
	return candidates, nil
}

// Evidence runs the three matchers over the whole taxonomy without fusing
// or recording stats. The subject classifier aggregates this raw per-method
// evidence at subject granularity.
func (e *Engine) Evidence(ctx context.Context, text string) (map[string][]Scored, []string, error) {
	if strings.TrimSpace(text) == "" {
		return map[string][]Scored{}, nil, nil
	}
	return e.runMatchers(ctx, text, e.taxonomy.Len(), "")
}

// runMatchers executes the three matchers independently. Rule and lexical
// failures abort the call; a semantic failure only degrades it, since the
// backend is a network dependency the other two do not share.
func (e *Engine) runMatchers(ctx context.Context, text string, topK int, subject string) (map[string][]Scored, []string, error) {
	byMethod := make(map[string][]Scored, 3)
	var contributing []string

	if rule := e.rule.Score(text, subject); len(rule) > 0 {
		byMethod[MethodRule] = rule
		contributing = append(contributing, MethodRule)
	}

	lexical, err := e.lexical.Score(text, topK, subject)
	if err != nil {
		return nil, nil, err
	}
	if len(lexical) > 0 {
		byMethod[MethodLexical] = lexical
		contributing = append(contributing, MethodLexical)
	}

	if e.semantic.Enabled() {
		semantic, err := e.semantic.Score(ctx, text, topK, subject)
		if err != nil {
			e.metrics.RecordEmbeddingRequest("error")
			e.log.WithError(err).Warn("Semantic matching degraded, scoring with rule and lexical methods only")
		} else {
			e.metrics.RecordEmbeddingRequest("ok")
			if len(semantic) > 0 {
				byMethod[MethodSemantic] = semantic
				contributing = append(contributing, MethodSemantic)
			}
		}
	}

	return byMethod, contributing, nil
}
