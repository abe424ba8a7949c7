// Package search implements nearest-neighbor retrieval over a corpus of
// historical questions. Text similarity comes from the same TF-IDF machinery
// the matching engine uses, fused with type, difficulty, and subject
// similarity into one composite score. Results are cached with TTL and LRU
// eviction; the cache is purely a performance layer and never changes what a
// fresh computation would return.
package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
	"github.com/ulinhsu/kpmatch-go/internal/tfidf"
)

// Question is one corpus entry for similarity search.
type Question struct {
	ID         string `json:"question_id"`
	Stem       string `json:"stem"`
	Answer     string `json:"correct_answer"`
	Type       string `json:"question_type"`
	Difficulty int    `json:"difficulty_level"`
	Subject    string `json:"subject"`
}

// Breakdown is the per-dimension similarity of one result.
type Breakdown struct {
	Text       float64 `json:"text"`
	Type       float64 `json:"type"`
	Difficulty float64 `json:"difficulty"`
	Subject    float64 `json:"subject"`
}

// Result is one ranked similar question.
type Result struct {
	Rank         int       `json:"rank"`
	Question     Question  `json:"question"`
	Score        float64   `json:"similarity_score"`
	Breakdown    Breakdown `json:"similarity_breakdown"`
	MatchReasons []string  `json:"match_reasons"`
}

// Reason cutoffs for the generated match-reason strings.
const (
	strongTextCutoff   = 0.8
	moderateTextCutoff = 0.5
	closeDifficulty    = 0.7
)

// typePairs maps compatible question-type pairs to a partial similarity.
// Exact match is 1.0, absent pairs are 0.0; keys are stored sorted.
var typePairs = map[[2]string]float64{
	{"multiple_choice", "single_choice"}: 0.7,
	{"fill_blank", "short_answer"}:       0.6,
	{"application", "calculation"}:       0.8,
	{"judge", "single_choice"}:           0.5,
}

// subjectPairs does the same for related subjects.
var subjectPairs = map[[2]string]float64{
	{"math", "physics"}:      0.5,
	{"chemistry", "physics"}: 0.4,
	{"chinese", "english"}:   0.3,
}

type indexedQuestion struct {
	question Question
	vec      []float64
}

// Index answers similarity queries over one built corpus snapshot.
// BuildIndex replaces the whole snapshot atomically; there is no incremental
// insert. All search operations fail with ErrIndexNotBuilt until the first
// successful build.
type Index struct {
	cfg      config.SearchConfig
	matchCfg config.MatchConfig
	norm     *textnorm.Normalizer
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu        sync.RWMutex
	vec       *tfidf.Vectorizer
	questions []indexedQuestion
	// projection is non-nil when the corpus was SVD-reduced; query vectors
	// are mapped through it before cosine scoring.
	projection *svdProjection
	buildTime  time.Duration

	cache *resultCache
}

// NewIndex creates an unbuilt index.
func NewIndex(cfg config.SearchConfig, matchCfg config.MatchConfig, norm *textnorm.Normalizer, log *logger.Logger, m *metrics.Metrics) *Index {
	return &Index{
		cfg:      cfg,
		matchCfg: matchCfg,
		norm:     norm,
		log:      log.WithModule("search"),
		metrics:  m,
		cache:    newResultCache(cfg.CacheCapacity, cfg.CacheTTL, m),
	}
}

// BuildIndex vectorizes the corpus and swaps it in wholesale. The previous
// snapshot and all cached results are discarded only after the new snapshot
// is fully computed, so concurrent readers never see a partial index.
func (x *Index) BuildIndex(questions []Question) error {
	start := time.Now()

	if len(questions) == 0 {
		return domerrors.NewValidationError("questions", "cannot build index over an empty corpus")
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			return domerrors.NewValidationError("question_id", "missing question id")
		}
		if _, dup := seen[q.ID]; dup {
			return domerrors.NewValidationError("question_id", fmt.Sprintf("duplicate question id %s", q.ID))
		}
		seen[q.ID] = struct{}{}
	}

	docs := make([]string, len(questions))
	for i, q := range questions {
		docs[i] = x.content(q)
	}

	vec := tfidf.Fit(docs, x.norm.Tokens, tfidf.Config{
		MaxFeatures: x.matchCfg.MaxFeatures,
		MinDocFreq:  x.matchCfg.MinDocFreq,
		MaxDocFreq:  x.matchCfg.MaxDocFreq,
	})

	rows := make([][]float64, len(questions))
	for i, doc := range docs {
		rows[i] = vec.Transform(doc)
	}

	// Large corpora get their vectors reduced for memory and latency;
	// small ones are scored in the full TF-IDF space.
	var projection *svdProjection
	if len(questions) > x.cfg.SVDThreshold {
		var err error
		projection, rows, err = reduceRows(rows, x.cfg.SVDComponents)
		if err != nil {
			return fmt.Errorf("reduce corpus vectors: %w", err)
		}
	}

	indexed := make([]indexedQuestion, len(questions))
	for i, q := range questions {
		indexed[i] = indexedQuestion{question: q, vec: rows[i]}
	}

	elapsed := time.Since(start)

	x.mu.Lock()
	x.vec = vec
	x.questions = indexed
	x.projection = projection
	x.buildTime = elapsed
	x.mu.Unlock()
	x.cache.purge()

	x.metrics.RecordIndexBuild(len(indexed), elapsed.Seconds())
	x.log.WithFields(map[string]any{
		"indexed":     len(indexed),
		"features":    vec.NumFeatures(),
		"reduced":     projection != nil,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Question index built")
	return nil
}

// Built reports whether a corpus snapshot is in place.
func (x *Index) Built() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.vec != nil
}

// FindSimilar returns up to topK indexed questions whose composite
// similarity to the query clears the threshold, ranked densely from 1.
// Identical arguments within the cache TTL are served from cache with
// byte-identical results.
func (x *Index) FindSimilar(query Question, topK int, threshold float64) ([]Result, error) {
	start := time.Now()

	if !x.Built() {
		x.metrics.RecordSearch("not_built", time.Since(start).Seconds())
		return nil, domerrors.ErrIndexNotBuilt
	}
	if topK <= 0 {
		topK = 10
	}

	key := cacheKey(query, x.content(query), topK, threshold)
	results, err := x.cache.getOrCompute(key, func() ([]Result, error) {
		return x.search(query, topK, threshold)
	})
	if err != nil {
		x.metrics.RecordSearch("error", time.Since(start).Seconds())
		return nil, err
	}

	x.metrics.RecordSearch("ok", time.Since(start).Seconds())
	return results, nil
}

// FindDuplicates returns indexed questions similar enough to the query to
// count as duplicates, using the configured duplicate threshold.
func (x *Index) FindDuplicates(query Question, topK int) ([]Result, error) {
	return x.FindSimilar(query, topK, x.cfg.DuplicateThreshold)
}

// Stats is a snapshot of the index and cache state.
type Stats struct {
	Built         bool    `json:"built"`
	IndexedCount  int     `json:"indexed_count"`
	BuildDuration string  `json:"build_duration"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
}

// Statistics reports index size and cache effectiveness.
func (x *Index) Statistics() Stats {
	x.mu.RLock()
	built := x.vec != nil
	count := len(x.questions)
	buildTime := x.buildTime
	x.mu.RUnlock()

	hits, misses := x.cache.counters()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Built:         built,
		IndexedCount:  count,
		BuildDuration: buildTime.String(),
		CacheHits:     hits,
		CacheMisses:   misses,
		CacheHitRate:  rate,
	}
}

// search computes fresh results; always called under the cache's
// singleflight so concurrent identical queries compute once.
func (x *Index) search(query Question, topK int, threshold float64) ([]Result, error) {
	x.mu.RLock()
	vec, questions, projection := x.vec, x.questions, x.projection
	x.mu.RUnlock()

	qvec := vec.Transform(x.content(query))
	if projection != nil {
		qvec = projection.project(qvec)
	}

	results := make([]Result, 0, topK)
	for _, cand := range questions {
		if query.ID != "" && cand.question.ID == query.ID {
			continue
		}

		breakdown := Breakdown{
			Text:       tfidf.Cosine(qvec, cand.vec),
			Type:       pairSimilarity(typePairs, query.Type, cand.question.Type),
			Difficulty: difficultySimilarity(query.Difficulty, cand.question.Difficulty),
			Subject:    pairSimilarity(subjectPairs, query.Subject, cand.question.Subject),
		}
		score := x.cfg.TextWeight*breakdown.Text +
			x.cfg.TypeWeight*breakdown.Type +
			x.cfg.DifficultyWeight*breakdown.Difficulty +
			x.cfg.SubjectWeight*breakdown.Subject
		if score < threshold {
			continue
		}

		results = append(results, Result{
			Question:     cand.question,
			Score:        score,
			Breakdown:    breakdown,
			MatchReasons: reasons(breakdown),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// content joins stem and answer into the searchable text of a question.
func (x *Index) content(q Question) string {
	return x.norm.Normalize(strings.TrimSpace(q.Stem + " " + q.Answer))
}

// pairSimilarity looks up two labels in a symmetric compatibility table.
func pairSimilarity(table map[[2]string]float64, a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if a > b {
		a, b = b, a
	}
	return table[[2]string{a, b}]
}

// difficultySimilarity decays with the level gap: exact 1.0, off by one 0.7,
// off by two 0.4, further 0.0.
func difficultySimilarity(a, b int) float64 {
	gap := a - b
	if gap < 0 {
		gap = -gap
	}
	switch gap {
	case 0:
		return 1.0
	case 1:
		return 0.7
	case 2:
		return 0.4
	default:
		return 0.0
	}
}

// reasons renders which similarity dimensions cleared their cutoffs.
func reasons(b Breakdown) []string {
	var out []string
	switch {
	case b.Text >= strongTextCutoff:
		out = append(out, "題目內容高度相似")
	case b.Text >= moderateTextCutoff:
		out = append(out, "題目內容較為相似")
	}
	if b.Type == 1 {
		out = append(out, "題型相同")
	} else if b.Type > 0 {
		out = append(out, "題型相近")
	}
	if b.Difficulty >= closeDifficulty {
		out = append(out, "難度相近")
	}
	if b.Subject == 1 {
		out = append(out, "學科相同")
	}
	return out
}
