// Package tfidf implements a frozen-vocabulary TF-IDF vectorizer over
// unigram and bigram features. A vectorizer is fit once over a corpus and is
// read-only afterwards, so a fitted instance is safe for concurrent use.
package tfidf

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Config bounds the fitted vocabulary.
type Config struct {
	// MaxFeatures caps the vocabulary size; the most document-frequent
	// features win, alphabetical order breaking ties for determinism.
	MaxFeatures int
	// MinDocFreq drops features seen in fewer documents than this.
	MinDocFreq int
	// MaxDocFreq drops features seen in more than this fraction of
	// documents; near-universal tokens carry no discriminative signal.
	MaxDocFreq float64
}

// Vectorizer maps text to a dense, L2-normalized TF-IDF vector.
type Vectorizer struct {
	tokenize func(string) []string
	vocab    map[string]int
	idf      []float64
}

// Fit builds a vectorizer over the corpus using smoothed IDF
// (ln((1+N)/(1+df)) + 1, so no feature gets a zero weight).
func Fit(docs []string, tokenize func(string) []string, cfg Config) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		for feat := range featureSet(tokenize(doc)) {
			df[feat]++
		}
	}

	n := len(docs)
	kept := make([]string, 0, len(df))
	for feat, count := range df {
		if count < cfg.MinDocFreq {
			continue
		}
		if cfg.MaxDocFreq > 0 && n > 0 && float64(count)/float64(n) > cfg.MaxDocFreq {
			continue
		}
		kept = append(kept, feat)
	}

	sort.Slice(kept, func(i, j int) bool {
		if df[kept[i]] != df[kept[j]] {
			return df[kept[i]] > df[kept[j]]
		}
		return kept[i] < kept[j]
	})
	if cfg.MaxFeatures > 0 && len(kept) > cfg.MaxFeatures {
		kept = kept[:cfg.MaxFeatures]
	}
	sort.Strings(kept)

	v := &Vectorizer{
		tokenize: tokenize,
		vocab:    make(map[string]int, len(kept)),
		idf:      make([]float64, len(kept)),
	}
	for i, feat := range kept {
		v.vocab[feat] = i
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[feat])) + 1
	}
	return v
}

// NumFeatures returns the fitted vocabulary size.
func (v *Vectorizer) NumFeatures() int {
	return len(v.vocab)
}

// Transform vectorizes text with the frozen vocabulary. Out-of-vocabulary
// features are ignored; a text with no known features yields a zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, len(v.idf))

	counts := make(map[int]int)
	for _, feat := range features(v.tokenize(text)) {
		if i, ok := v.vocab[feat]; ok {
			counts[i]++
		}
	}
	for i, count := range counts {
		vec[i] = float64(count) * v.idf[i]
	}

	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

// Cosine returns the cosine similarity of two equal-length vectors,
// or 0 when either is a zero vector.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// features expands tokens into unigram and adjacent-bigram features.
func features(tokens []string) []string {
	feats := make([]string, 0, 2*len(tokens))
	feats = append(feats, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		feats = append(feats, tokens[i]+" "+tokens[i+1])
	}
	return feats
}

// featureSet is the distinct features of a token sequence.
func featureSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, 2*len(tokens))
	for _, feat := range features(tokens) {
		set[feat] = struct{}{}
	}
	return set
}
