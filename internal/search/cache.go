package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/ulinhsu/kpmatch-go/internal/metrics"
)

// resultCache memoizes search results under a composite key with TTL and
// LRU eviction in one structure. Concurrent identical misses are collapsed
// through singleflight so the computation runs once.
type resultCache struct {
	lru     *expirable.LRU[string, []Result]
	group   singleflight.Group
	metrics *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

func newResultCache(capacity int, ttl time.Duration, m *metrics.Metrics) *resultCache {
	return &resultCache{
		lru:     expirable.NewLRU[string, []Result](capacity, nil, ttl),
		metrics: m,
	}
}

// getOrCompute returns the cached results for key or computes and stores
// them. Cached entries are copied out so callers can never mutate the cache.
func (c *resultCache) getOrCompute(key string, compute func() ([]Result, error)) ([]Result, error) {
	if results, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheHit("search")
		return copyResults(results), nil
	}

	c.misses.Add(1)
	c.metrics.RecordCacheMiss("search")

	fresh, err, _ := c.group.Do(key, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return copyResults(fresh.([]Result)), nil
}

func (c *resultCache) purge() {
	c.lru.Purge()
}

func (c *resultCache) counters() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// cacheKey hashes everything the computed results depend on: the normalized
// content, the query metadata feeding the composite score, the query id used
// for self-exclusion, and the search parameters.
func cacheKey(query Question, content string, topK int, threshold float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%d|%s|%d|%g",
		query.ID, content, query.Type, query.Difficulty, query.Subject, topK, threshold))
	return hex.EncodeToString(sum[:])
}

func copyResults(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	return out
}
