package search

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
)

var (
	normOnce sync.Once
	normInst *textnorm.Normalizer
)

func testNormalizer(t *testing.T) *textnorm.Normalizer {
	t.Helper()
	normOnce.Do(func() {
		n, err := textnorm.New()
		if err != nil {
			t.Fatalf("load segmenter: %v", err)
		}
		normInst = n
	})
	return normInst
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		TextWeight:         0.6,
		TypeWeight:         0.2,
		DifficultyWeight:   0.1,
		SubjectWeight:      0.1,
		DuplicateThreshold: 0.85,
		CacheTTL:           time.Hour,
		CacheCapacity:      16,
		SVDThreshold:       1000,
		SVDComponents:      300,
	}
}

func testMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		MaxFeatures: 3000,
		MinDocFreq:  1,
		MaxDocFreq:  0.95,
	}
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	return NewIndex(testSearchConfig(), testMatchConfig(), testNormalizer(t), log, m)
}

func corpus() []Question {
	return []Question{
		{ID: "q1", Stem: "解一元一次方程：2x + 3 = 7，求x的值", Answer: "x = 2", Type: "calculation", Difficulty: 2, Subject: "math"},
		{ID: "q2", Stem: "解不等式 3x - 1 > 5 的解集", Answer: "x > 2", Type: "calculation", Difficulty: 3, Subject: "math"},
		{ID: "q3", Stem: "求底边为6高为4的三角形面积", Answer: "12", Type: "calculation", Difficulty: 2, Subject: "math"},
		{ID: "q4", Stem: "概括这篇文章的中心思想", Answer: "热爱自然", Type: "short_answer", Difficulty: 3, Subject: "chinese"},
		{ID: "q5", Stem: "翻译下面的句子为英文", Answer: "Good morning", Type: "short_answer", Difficulty: 2, Subject: "english"},
	}
}

func builtIndex(t *testing.T) *Index {
	t.Helper()
	idx := testIndex(t)
	require.NoError(t, idx.BuildIndex(corpus()))
	return idx
}

func TestFindSimilarBeforeBuild(t *testing.T) {
	idx := testIndex(t)
	_, err := idx.FindSimilar(Question{Stem: "解方程"}, 3, 0.2)
	assert.ErrorIs(t, err, domerrors.ErrIndexNotBuilt)
}

func TestBuildIndexValidation(t *testing.T) {
	idx := testIndex(t)

	assert.Error(t, idx.BuildIndex(nil))
	assert.Error(t, idx.BuildIndex([]Question{{Stem: "no id"}}))
	assert.Error(t, idx.BuildIndex([]Question{
		{ID: "dup", Stem: "a"},
		{ID: "dup", Stem: "b"},
	}))
}

func TestFindSimilarNearDuplicate(t *testing.T) {
	idx := builtIndex(t)

	// Same operation as q1 with different constants.
	query := Question{ID: "new", Stem: "解一元一次方程：5x + 1 = 11，求x的值", Answer: "x = 2", Type: "calculation", Difficulty: 2, Subject: "math"}

	results, err := idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "q1", top.Question.ID)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.Score, 0.2)
	assert.NotEmpty(t, top.MatchReasons)
	assert.Contains(t, top.MatchReasons, "題型相同")
}

func TestFindSimilarRanksAndThreshold(t *testing.T) {
	idx := builtIndex(t)

	query := Question{Stem: "解方程求x的值", Type: "calculation", Difficulty: 2, Subject: "math"}
	results, err := idx.FindSimilar(query, 5, 0.2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Score, 0.2)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestFindSimilarTopK(t *testing.T) {
	idx := builtIndex(t)

	results, err := idx.FindSimilar(Question{Stem: "解方程", Subject: "math", Difficulty: 2, Type: "calculation"}, 2, 0.0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	idx := builtIndex(t)

	q := corpus()[0]
	results, err := idx.FindSimilar(q, 5, 0.0)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, q.ID, r.Question.ID)
	}
}

func TestFindSimilarCacheHitCounting(t *testing.T) {
	idx := builtIndex(t)
	query := Question{Stem: "解方程求x的值", Type: "calculation", Difficulty: 2, Subject: "math"}

	first, err := idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	stats := idx.Statistics()
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)

	second, err := idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	stats = idx.Statistics()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)

	// Cache transparency: identical results either way.
	assert.Equal(t, first, second)
}

func TestFindSimilarCacheKeyedByArguments(t *testing.T) {
	idx := builtIndex(t)
	query := Question{Stem: "解方程求x的值", Type: "calculation", Difficulty: 2, Subject: "math"}

	_, err := idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	_, err = idx.FindSimilar(query, 5, 0.2)
	require.NoError(t, err)
	_, err = idx.FindSimilar(query, 3, 0.4)
	require.NoError(t, err)

	stats := idx.Statistics()
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
}

func TestFindSimilarCacheKeyedByMetadata(t *testing.T) {
	idx := builtIndex(t)
	stem := "解方程求x的值"

	// Same text, different metadata must not share a cache entry.
	_, err := idx.FindSimilar(Question{Stem: stem, Type: "calculation", Difficulty: 2, Subject: "math"}, 3, 0.1)
	require.NoError(t, err)
	cached, err := idx.FindSimilar(Question{Stem: stem, Type: "essay", Difficulty: 5, Subject: "chinese"}, 3, 0.1)
	require.NoError(t, err)

	idx.cache.purge()
	fresh, err := idx.FindSimilar(Question{Stem: stem, Type: "essay", Difficulty: 5, Subject: "chinese"}, 3, 0.1)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)

	// Same text under a different id changes self-exclusion, so it must
	// miss as well.
	excluded, err := idx.FindSimilar(Question{ID: "q1", Stem: stem, Type: "calculation", Difficulty: 2, Subject: "math"}, 3, 0.1)
	require.NoError(t, err)
	for _, r := range excluded {
		assert.NotEqual(t, "q1", r.Question.ID)
	}
}

func TestRebuildPurgesCache(t *testing.T) {
	idx := builtIndex(t)
	query := Question{Stem: "解方程求x的值", Type: "calculation", Difficulty: 2, Subject: "math"}

	_, err := idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	require.NoError(t, idx.BuildIndex(corpus()))

	_, err = idx.FindSimilar(query, 3, 0.2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), idx.Statistics().CacheHits)
}

func TestFindDuplicates(t *testing.T) {
	idx := builtIndex(t)

	// An exact copy of q1 under a new id clears the duplicate threshold.
	dup := corpus()[0]
	dup.ID = "copy"
	results, err := idx.FindDuplicates(dup, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "q1", results[0].Question.ID)
	assert.GreaterOrEqual(t, results[0].Score, testSearchConfig().DuplicateThreshold)

	// A loosely related question does not.
	results, err = idx.FindDuplicates(Question{ID: "other", Stem: "唐诗鉴赏", Type: "essay", Difficulty: 5, Subject: "chinese"}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatistics(t *testing.T) {
	idx := builtIndex(t)

	stats := idx.Statistics()
	assert.True(t, stats.Built)
	assert.Equal(t, len(corpus()), stats.IndexedCount)
}

func TestDifficultySimilarity(t *testing.T) {
	assert.Equal(t, 1.0, difficultySimilarity(3, 3))
	assert.Equal(t, 0.7, difficultySimilarity(3, 4))
	assert.Equal(t, 0.4, difficultySimilarity(3, 1))
	assert.Equal(t, 0.0, difficultySimilarity(1, 5))
}

func TestPairSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, pairSimilarity(typePairs, "calculation", "calculation"))
	assert.Equal(t, 0.8, pairSimilarity(typePairs, "calculation", "application"))
	assert.Equal(t, 0.8, pairSimilarity(typePairs, "application", "calculation"))
	assert.Equal(t, 0.0, pairSimilarity(typePairs, "calculation", "essay"))
	assert.Equal(t, 0.0, pairSimilarity(typePairs, "", "calculation"))
}

func TestSVDReducedCorpus(t *testing.T) {
	idx := testIndex(t)
	idx.cfg.SVDThreshold = 10
	idx.cfg.SVDComponents = 8

	questions := make([]Question, 0, 30)
	for i := 0; i < 30; i++ {
		questions = append(questions, Question{
			ID:         fmt.Sprintf("q%d", i),
			Stem:       fmt.Sprintf("解一元一次方程：%dx + %d = %d，求x的值", i+1, i, 2*i+1),
			Type:       "calculation",
			Difficulty: 1 + i%5,
			Subject:    "math",
		})
	}
	questions[29].Stem = "概括这篇文章的中心思想和段落大意"
	questions[29].Subject = "chinese"
	questions[29].Type = "short_answer"

	require.NoError(t, idx.BuildIndex(questions))
	require.True(t, idx.Built())

	results, err := idx.FindSimilar(Question{Stem: "解一元一次方程：9x + 8 = 17，求x的值", Type: "calculation", Difficulty: 2, Subject: "math"}, 5, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// The lone reading question must not outrank the equation questions.
	assert.NotEqual(t, "q29", results[0].Question.ID)
}
