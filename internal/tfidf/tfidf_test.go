package tfidf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitTokens(text string) []string {
	return strings.Fields(text)
}

func fitTestVectorizer(docs []string, cfg Config) *Vectorizer {
	return Fit(docs, splitTokens, cfg)
}

func TestFitAndTransform(t *testing.T) {
	docs := []string{
		"方程 未知数 解方程",
		"不等式 大于 小于",
		"三角形 面积 底边",
	}
	v := fitTestVectorizer(docs, Config{MinDocFreq: 1, MaxDocFreq: 0.95})

	require.Positive(t, v.NumFeatures())

	vec := v.Transform("方程 未知数")
	require.Len(t, vec, v.NumFeatures())

	// L2 normalized
	var sq float64
	for _, x := range vec {
		sq += x * x
	}
	assert.InDelta(t, 1.0, sq, 1e-9)
}

func TestCosineRanksOverlap(t *testing.T) {
	docs := []string{
		"方程 未知数 解方程",
		"不等式 大于 小于",
	}
	v := fitTestVectorizer(docs, Config{MinDocFreq: 1, MaxDocFreq: 0.95})

	query := v.Transform("解方程 求 未知数")
	eq := v.Transform(docs[0])
	ineq := v.Transform(docs[1])

	assert.Greater(t, Cosine(query, eq), Cosine(query, ineq))
}

func TestMaxDocFreqPrunesUniversalTokens(t *testing.T) {
	docs := []string{
		"共同 方程",
		"共同 不等式",
		"共同 三角形",
	}
	v := fitTestVectorizer(docs, Config{MinDocFreq: 1, MaxDocFreq: 0.9})

	// 共同 appears in every document and is pruned, so two documents
	// sharing only that token have nothing in common.
	a := v.Transform("共同 方程")
	b := v.Transform("共同 不等式")
	assert.Equal(t, 0.0, Cosine(a, b))
}

func TestMinDocFreqPrunesRareTokens(t *testing.T) {
	docs := []string{
		"方程 方程",
		"方程 稀有",
	}
	v := fitTestVectorizer(docs, Config{MinDocFreq: 2, MaxDocFreq: 1.0})

	// Only 方程 survives (稀有 and the bigrams appear in one doc each).
	assert.Equal(t, 1, v.NumFeatures())
}

func TestMaxFeaturesCap(t *testing.T) {
	docs := []string{
		"一 二 三 四 五",
		"一 二 三 四",
		"一 二 三",
	}
	v := fitTestVectorizer(docs, Config{MaxFeatures: 3, MinDocFreq: 1, MaxDocFreq: 1.0})
	assert.Equal(t, 3, v.NumFeatures())
}

func TestBigramsCarrySignal(t *testing.T) {
	docs := []string{
		"解 方程",
		"方程 解",
	}
	v := fitTestVectorizer(docs, Config{MinDocFreq: 1, MaxDocFreq: 1.0})

	// Same unigrams, different bigrams: vectors must differ.
	a := v.Transform("解 方程")
	b := v.Transform("方程 解")
	assert.Less(t, Cosine(a, b), 1.0)
}

func TestTransformOutOfVocabulary(t *testing.T) {
	v := fitTestVectorizer([]string{"方程 未知数"}, Config{MinDocFreq: 1, MaxDocFreq: 1.0})

	vec := v.Transform("完全 陌生 词汇")
	for _, x := range vec {
		assert.Equal(t, 0.0, x)
	}
	assert.Equal(t, 0.0, Cosine(vec, v.Transform("方程")))
}

func TestCosineZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 0}))
}
