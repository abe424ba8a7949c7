package match

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulinhsu/kpmatch-go/internal/config"
	"github.com/ulinhsu/kpmatch-go/internal/embedding"
	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/metrics"
	"github.com/ulinhsu/kpmatch-go/internal/taxonomy"
	"github.com/ulinhsu/kpmatch-go/internal/textnorm"
)

const testTaxonomy = `
subjects:
  math:
    name: 數學
    categories:
      algebra:
        name: 代數
        points:
          linear_equations:
            name: 一元一次方程
            keywords: [方程, 未知数, 解方程]
            patterns: ['求.*?的值', '解.*?方程']
            difficulty: 2
            importance: 5
            exam_frequency: 0.9
            base_confidence: 0.3
          inequalities:
            name: 一元一次不等式
            keywords: [不等式, 大于, 小于]
            negative_patterns: [方程]
            difficulty: 3
            importance: 4
            exam_frequency: 0.7
            base_confidence: 0.3
      geometry:
        name: 幾何
        points:
          triangle_area:
            name: 三角形面积
            keywords: [三角形, 面积, 底边]
            patterns: ['三角形.*?面积']
            difficulty: 2
            importance: 4
            exam_frequency: 0.8
            base_confidence: 0.25
  chinese:
    name: 語文
    categories:
      reading:
        name: 閱讀理解
        points:
          main_idea:
            name: 中心思想
            keywords: [中心思想, 主旨, 段落大意]
            difficulty: 3
            importance: 4
            exam_frequency: 0.6
            base_confidence: 0.2
`

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

func testIndex(t *testing.T) *taxonomy.Index {
	t.Helper()
	idx, err := taxonomy.Load([]byte(testTaxonomy))
	require.NoError(t, err)
	return idx
}

func testMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		RuleWeight:     0.4,
		LexicalWeight:  0.2,
		SemanticWeight: 0.4,
		AgreementBonus: 0.1,
		LexicalFloor:   0.1,
		SemanticFloor:  0.3,
		MaxFeatures:    3000,
		MinDocFreq:     1,
		MaxDocFreq:     0.9,
		DefaultTopK:    5,
	}
}

func testEngine(t *testing.T, embedder embedding.Embedder) *Engine {
	t.Helper()
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(testMatchConfig(), testNormalizer(t), testIndex(t), embedder, log, m)
	_, err := e.WarmUp(context.Background(), nil)
	require.NoError(t, err)
	return e
}

// anchorEmbedder projects text onto fixed topic anchors so related texts get
// colinear vectors without a live backend.
type anchorEmbedder struct{}

var anchors = []string{"方程", "不等式", "三角形", "面积", "中心思想", "主旨"}

func (anchorEmbedder) Model() string   { return "anchor-test" }
func (anchorEmbedder) Dimensions() int { return len(anchors) }

func (anchorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(anchors))
	for i, a := range anchors {
		if strings.Contains(text, a) {
			vec[i] = 1
		}
	}
	return vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Model() string   { return "failing-test" }
func (failingEmbedder) Dimensions() int { return 4 }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("backend down")
}

func TestMatchLinearEquationQuery(t *testing.T) {
	e := testEngine(t, nil)

	results, err := e.Match(context.Background(), "解一元一次方程：2x + 3 = 7，求x的值", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "math.algebra.linear_equations", top.Point.Path)
	assert.Contains(t, top.ContributingMethods, MethodRule)
	assert.NotEmpty(t, top.MatchReasons)
}

func TestMatchEmptyQuery(t *testing.T) {
	e := testEngine(t, nil)

	results, err := e.Match(context.Background(), "", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = e.Match(context.Background(), "   \n\t ", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatchDeterminism(t *testing.T) {
	e := testEngine(t, anchorEmbedder{})
	query := "先解方程再比较大小，求x的值"

	first, err := e.Match(context.Background(), query, 5, "")
	require.NoError(t, err)
	second, err := e.Match(context.Background(), query, 5, "")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Point.Path, second[i].Point.Path)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
		assert.Equal(t, first[i].ContributingMethods, second[i].ContributingMethods)
		assert.Equal(t, first[i].MatchReasons, second[i].MatchReasons)
	}
}

func TestMatchConfidenceBounds(t *testing.T) {
	e := testEngine(t, anchorEmbedder{})

	queries := []string{
		"解一元一次方程：2x + 3 = 7，求x的值",
		"求三角形的面积，底边为6",
		"这篇文章的中心思想是什么",
		"不等式 3x - 1 > 5 的解集",
		"完全无关的文本内容",
	}
	for _, q := range queries {
		results, err := e.Match(context.Background(), q, 10, "")
		require.NoError(t, err)
		for i, c := range results {
			assert.GreaterOrEqual(t, c.Confidence, 0.0, "query %q", q)
			assert.LessOrEqual(t, c.Confidence, 1.0, "query %q", q)
			assert.NotEmpty(t, c.ContributingMethods)
			if i > 0 {
				assert.LessOrEqual(t, c.Confidence, results[i-1].Confidence, "ranking inversion for %q", q)
			}
		}
	}
}

func TestMatchTopKContract(t *testing.T) {
	e := testEngine(t, nil)

	results, err := e.Match(context.Background(), "方程 不等式 三角形 面积 中心思想", 2, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestMatchSubjectHint(t *testing.T) {
	e := testEngine(t, nil)

	results, err := e.Match(context.Background(), "概括本文的段落大意和中心思想，并解方程", 5, "chinese")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, c := range results {
		assert.Equal(t, "chinese", c.Point.Subject)
	}
	assert.Equal(t, "chinese.reading.main_idea", results[0].Point.Path)
}

func TestMatchGracefulDegradationWithoutSemantic(t *testing.T) {
	e := testEngine(t, nil)
	assert.False(t, e.SemanticEnabled())

	results, err := e.Match(context.Background(), "解方程求x的值", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotContains(t, results[0].ContributingMethods, MethodSemantic)
}

func TestMatchSemanticBackendFailureDegrades(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(testMatchConfig(), testNormalizer(t), testIndex(t), failingEmbedder{}, log, m)

	// WarmUp cannot build the matrix against a dead backend.
	_, err := e.WarmUp(context.Background(), nil)
	assert.Error(t, err)
}

func TestMatchSemanticQueryFailureDegrades(t *testing.T) {
	e := testEngine(t, anchorEmbedder{})
	// Backend dies after warmup; matching carries on without semantic scores.
	e.semantic.embedder = failingEmbedder{}

	results, err := e.Match(context.Background(), "解方程求x的值", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotContains(t, results[0].ContributingMethods, MethodSemantic)
}

func TestMatchSemanticContributes(t *testing.T) {
	e := testEngine(t, anchorEmbedder{})
	require.True(t, e.SemanticEnabled())

	results, err := e.Match(context.Background(), "解方程：2x + 3 = 7，求x的值", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "math.algebra.linear_equations", results[0].Point.Path)
	assert.Contains(t, results[0].ContributingMethods, MethodSemantic)
}

func TestMatchBeforeWarmUp(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(testMatchConfig(), testNormalizer(t), testIndex(t), nil, log, m)

	_, err := e.Match(context.Background(), "解方程", 5, "")
	assert.ErrorIs(t, err, domerrors.ErrNotWarmedUp)
}

func TestStatsRecording(t *testing.T) {
	e := testEngine(t, nil)

	_, err := e.Match(context.Background(), "解方程求x的值", 5, "")
	require.NoError(t, err)
	_, err = e.Match(context.Background(), "三角形的面积", 5, "")
	require.NoError(t, err)

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.TotalCalls)
	assert.Positive(t, snap.MethodUsage[MethodRule])
	assert.NotEmpty(t, snap.ConfidenceHistogram)
}
